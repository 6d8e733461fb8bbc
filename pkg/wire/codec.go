package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Record delimiter within a chunk.
const recordSeparator = '\n'

// Decoding errors.
var (
	ErrParse        = errors.New("malformed event record")
	ErrMissingField = errors.New("missing field")
	ErrInvalidEvent = errors.New("invalid event")
	ErrInvalidUTF8  = errors.New("chunk is not valid UTF-8")
)

// SplitChunk splits a network chunk into record fragments.
// Fragments that are empty or contain only whitespace are dropped.
// The returned slices alias chunk.
func SplitChunk(chunk []byte) [][]byte {
	var out [][]byte
	for _, fragment := range bytes.Split(chunk, []byte{recordSeparator}) {
		if len(bytes.TrimSpace(fragment)) == 0 {
			continue
		}
		out = append(out, fragment)
	}
	return out
}

// CheckChunk verifies that a chunk can be interpreted as text.
func CheckChunk(chunk []byte) error {
	if !utf8.Valid(chunk) {
		return ErrInvalidUTF8
	}
	return nil
}

// DecodeEvent parses a single record fragment.
// All failures wrap ErrParse. Empty identifiers are accepted; any string is a
// valid event or stream id on the receiving side.
func DecodeEvent(fragment []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(fragment, &event); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return event, nil
}

// EncodeEvent encodes an event as one newline-terminated record.
func EncodeEvent(event Event) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if event.Body == nil {
		event.Body = json.RawMessage("null")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return append(data, recordSeparator), nil
}

// EncodeBatch encodes events back to back as a single chunk.
func EncodeBatch(events ...Event) ([]byte, error) {
	var buf bytes.Buffer
	for _, event := range events {
		data, err := EncodeEvent(event)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
