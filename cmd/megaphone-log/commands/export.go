package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/megaphone-protocol/megaphone-go/pkg/log"
)

// RunExport writes the matching events of path to w as jsonl or csv.
func RunExport(path, format string, opts FilterOptions, w io.Writer) error {
	var export func(*log.Reader, io.Writer) error
	switch format {
	case "jsonl":
		export = exportJSONL
	case "csv":
		export = exportCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	filter, err := opts.Build()
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	return export(reader, w)
}

// jsonEvent is the JSON form of a trace event, with names instead of the
// numeric enums.
type jsonEvent struct {
	Timestamp   string       `json:"timestamp"`
	ReaderID    string       `json:"readerId"`
	Layer       string       `json:"layer"`
	Category    string       `json:"category"`
	Channel     string       `json:"channel,omitempty"`
	Attempt     int          `json:"attempt,omitempty"`
	Chunk       *jsonChunk   `json:"chunk,omitempty"`
	Message     *jsonMessage `json:"message,omitempty"`
	StateChange *jsonState   `json:"stateChange,omitempty"`
	Error       *jsonError   `json:"error,omitempty"`
}

type jsonChunk struct {
	Size      int    `json:"size"`
	Fragments int    `json:"fragments"`
	Data      string `json:"data,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

type jsonState struct {
	OldState string `json:"oldState,omitempty"`
	NewState string `json:"newState"`
	Reason   string `json:"reason,omitempty"`
}

type jsonMessage struct {
	EventID    string `json:"eventId"`
	StreamID   string `json:"streamId"`
	Outcome    string `json:"outcome"`
	Deliveries int    `json:"deliveries"`
	BodySize   int    `json:"bodySize"`
}

type jsonError struct {
	Layer   string `json:"layer"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

func toJSONEvent(event log.Event) jsonEvent {
	je := jsonEvent{
		Timestamp: event.Timestamp.UTC().Format(timeFormat),
		ReaderID:  event.ReaderID,
		Layer:     event.Layer.String(),
		Category:  event.Category.String(),
		Channel:   event.Channel,
		Attempt:   event.Attempt,
	}
	if c := event.Chunk; c != nil {
		je.Chunk = &jsonChunk{Size: c.Size, Fragments: c.Fragments, Data: string(c.Data), Truncated: c.Truncated}
	}
	if sc := event.StateChange; sc != nil {
		je.StateChange = &jsonState{OldState: sc.OldState, NewState: sc.NewState, Reason: sc.Reason}
	}
	if m := event.Message; m != nil {
		je.Message = &jsonMessage{
			EventID:    m.EventID,
			StreamID:   m.StreamID,
			Outcome:    m.Outcome.String(),
			Deliveries: m.Deliveries,
			BodySize:   m.BodySize,
		}
	}
	if e := event.Error; e != nil {
		je.Error = &jsonError{Layer: e.Layer.String(), Message: e.Message, Context: e.Context}
	}
	return je
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for event, err := range reader.All() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toJSONEvent(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

var csvHeader = []string{"timestamp", "reader_id", "layer", "category", "channel", "attempt", "type", "event_id", "stream_id", "detail"}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for event, err := range reader.All() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var eventID, streamID, detail string
		switch {
		case event.Chunk != nil:
			detail = strconv.Itoa(event.Chunk.Size)
		case event.Message != nil:
			eventID = event.Message.EventID
			streamID = event.Message.StreamID
			detail = strconv.Itoa(event.Message.Deliveries)
		case event.StateChange != nil:
			detail = event.StateChange.NewState
		case event.Error != nil:
			detail = event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format(timeFormat),
			event.ReaderID,
			event.Layer.String(),
			event.Category.String(),
			event.Channel,
			strconv.Itoa(event.Attempt),
			eventType(event),
			eventID,
			streamID,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
