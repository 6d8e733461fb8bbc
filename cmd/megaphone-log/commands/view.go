// Package commands implements the megaphone-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/megaphone-protocol/megaphone-go/pkg/log"
)

const timeFormat = "2006-01-02T15:04:05.000000Z"

// RunView writes the matching events of path in human-readable form.
func RunView(path string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for event, err := range reader.All() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
	return nil
}

// formatEvent writes one event:
//
//	timestamp [reader:id] LAYER Type channel
//	  details...
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timeFormat)
	fmt.Fprintf(w, "%s [reader:%s] %s %s", ts, shortenID(event.ReaderID), event.Layer, eventType(event))
	if event.Channel != "" {
		fmt.Fprintf(w, " %s", event.Channel)
	}
	if event.Attempt > 1 {
		fmt.Fprintf(w, " (attempt %d)", event.Attempt)
	}
	fmt.Fprintln(w)

	switch {
	case event.Chunk != nil:
		formatChunkDetails(w, event.Chunk)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// eventType labels the payload of an event.
func eventType(event log.Event) string {
	switch {
	case event.Chunk != nil:
		return "Chunk"
	case event.Message != nil:
		return event.Message.Outcome.String()
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a reader id.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatChunkDetails(w io.Writer, chunk *log.ChunkEvent) {
	fmt.Fprintf(w, "  Size: %d bytes, %d fragment(s)\n", chunk.Size, chunk.Fragments)
	if len(chunk.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", quoteChunk(chunk.Data))
		if chunk.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// quoteChunk renders NDJSON text readably and anything else escaped.
func quoteChunk(data []byte) string {
	if utf8.Valid(data) {
		return strconv.Quote(string(data))
	}
	return fmt.Sprintf("%q", data)
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  EventID: %s\n", msg.EventID)
	fmt.Fprintf(w, "  StreamID: %s\n", msg.StreamID)
	if msg.Outcome == log.OutcomeDelivered {
		fmt.Fprintf(w, "  Deliveries: %d\n", msg.Deliveries)
	}
	if msg.BodySize > 0 {
		fmt.Fprintf(w, "  Body: %d bytes\n", msg.BodySize)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}
