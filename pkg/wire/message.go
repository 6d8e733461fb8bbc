package wire

import (
	"encoding/json"
	"fmt"
)

// Event is one record received from a channel.
type Event struct {
	// EventID identifies the event within the client's dedup horizon.
	EventID string `json:"eventId"`

	// StreamID names the sub-stream of the channel the event belongs to.
	StreamID string `json:"streamId"`

	// Body is the application payload, left undecoded.
	Body json.RawMessage `json:"body"`
}

// UnmarshalJSON decodes an event record, accepting snake_case aliases for the
// identifier fields.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		EventID       *string         `json:"eventId"`
		EventIDAlias  *string         `json:"event_id"`
		StreamID      *string         `json:"streamId"`
		StreamIDAlias *string         `json:"stream_id"`
		Body          json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	eventID := firstSet(raw.EventID, raw.EventIDAlias)
	if eventID == nil {
		return fmt.Errorf("%w: eventId", ErrMissingField)
	}
	streamID := firstSet(raw.StreamID, raw.StreamIDAlias)
	if streamID == nil {
		return fmt.Errorf("%w: streamId", ErrMissingField)
	}
	if raw.Body == nil {
		return fmt.Errorf("%w: body", ErrMissingField)
	}

	*e = Event{
		EventID:  *eventID,
		StreamID: *streamID,
		Body:     raw.Body,
	}
	return nil
}

// Validate checks that the identifiers are set. Only encoding enforces it.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("%w: empty eventId", ErrInvalidEvent)
	}
	if e.StreamID == "" {
		return fmt.Errorf("%w: empty streamId", ErrInvalidEvent)
	}
	return nil
}

// Clone returns a copy of the event that shares no memory with e.
func (e Event) Clone() Event {
	if e.Body == nil {
		return e
	}
	body := make(json.RawMessage, len(e.Body))
	copy(body, e.Body)
	e.Body = body
	return e
}

func firstSet(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
