package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp: ts,
		ReaderID:  "abc12345-def6-7890-abcd-ef1234567890",
		Layer:     LayerClient,
		Category:  CategoryMessage,
		Channel:   "agent-1.chan-42",
		Attempt:   2,
		Message: &MessageEvent{
			EventID:    "evt-1",
			StreamID:   "__delayed__",
			Outcome:    OutcomeDelivered,
			Deliveries: 3,
			BodySize:   17,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ReaderID != original.ReaderID {
		t.Errorf("ReaderID: got %q, want %q", decoded.ReaderID, original.ReaderID)
	}
	if decoded.Layer != original.Layer {
		t.Errorf("Layer: got %v, want %v", decoded.Layer, original.Layer)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.Channel != original.Channel {
		t.Errorf("Channel: got %q, want %q", decoded.Channel, original.Channel)
	}
	if decoded.Attempt != original.Attempt {
		t.Errorf("Attempt: got %d, want %d", decoded.Attempt, original.Attempt)
	}
	if decoded.Message == nil {
		t.Fatal("Message is nil")
	}
	if *decoded.Message != *original.Message {
		t.Errorf("Message: got %+v, want %+v", *decoded.Message, *original.Message)
	}
}

func TestEventCBORPayloads(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		check func(t *testing.T, e Event)
	}{
		{
			name: "Chunk",
			event: Event{
				Layer:    LayerTransport,
				Category: CategoryChunk,
				Chunk:    &ChunkEvent{Size: 300, Fragments: 2, Data: []byte("abc"), Truncated: true},
			},
			check: func(t *testing.T, e Event) {
				if e.Chunk == nil {
					t.Fatal("Chunk is nil")
				}
				if e.Chunk.Size != 300 || e.Chunk.Fragments != 2 || !e.Chunk.Truncated {
					t.Errorf("Chunk = %+v", *e.Chunk)
				}
				if !bytes.Equal(e.Chunk.Data, []byte("abc")) {
					t.Errorf("Chunk.Data = %q", e.Chunk.Data)
				}
				if e.Message != nil || e.StateChange != nil || e.Error != nil {
					t.Error("unexpected extra payload")
				}
			},
		},
		{
			name: "StateChange",
			event: Event{
				Layer:       LayerClient,
				Category:    CategoryState,
				StateChange: &StateChangeEvent{OldState: "STREAMING", NewState: "DECIDING", Reason: "end of body"},
			},
			check: func(t *testing.T, e Event) {
				if e.StateChange == nil {
					t.Fatal("StateChange is nil")
				}
				want := StateChangeEvent{OldState: "STREAMING", NewState: "DECIDING", Reason: "end of body"}
				if *e.StateChange != want {
					t.Errorf("StateChange = %+v, want %+v", *e.StateChange, want)
				}
			},
		},
		{
			name: "Error",
			event: Event{
				Layer:    LayerWire,
				Category: CategoryError,
				Error:    &ErrorEventData{Layer: LayerWire, Message: "parse error", Context: "decode fragment"},
			},
			check: func(t *testing.T, e Event) {
				if e.Error == nil {
					t.Fatal("Error is nil")
				}
				if e.Error.Layer != LayerWire || e.Error.Message != "parse error" || e.Error.Context != "decode fragment" {
					t.Errorf("Error = %+v", *e.Error)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.event.Timestamp = time.Now()
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}
			tt.check(t, decoded)
		})
	}
}

func TestEncodeEventDeterministic(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ReaderID:  "r",
		Channel:   "c",
		Message:   &MessageEvent{EventID: "e", StreamID: "s"},
	}

	a, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	b, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestDecodeAll(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, id := range []string{"r1", "r2", "r3"} {
		if err := enc.Encode(Event{Timestamp: time.Now(), ReaderID: id}); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	events, err := DecodeAll(&buf)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[2].ReaderID != "r3" {
		t.Errorf("events[2].ReaderID = %q, want r3", events[2].ReaderID)
	}
}

func TestDecodeAllTruncated(t *testing.T) {
	data, err := EncodeEvent(Event{Timestamp: time.Now(), ReaderID: "r1"})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	second, _ := EncodeEvent(Event{Timestamp: time.Now(), ReaderID: "r2"})
	data = append(data, second[:len(second)/2]...)

	events, err := DecodeAll(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected error for truncated input")
	}
	if len(events) != 1 {
		t.Errorf("got %d events before the error, want 1", len(events))
	}
}

func TestDecodeEventInvalid(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}
