package log

import (
	"time"
)

// MaxChunkCapture is the number of chunk bytes kept in a ChunkEvent.
const MaxChunkCapture = 256

// Event is one record of reader activity.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ReaderID identifies the long-poll reader (UUID).
	ReaderID string `cbor:"2,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Channel is the address the reader is bound to.
	Channel string `cbor:"5,keyasint,omitempty"`

	// Attempt is the connect attempt of the reader, starting at 1.
	Attempt int `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Chunk       *ChunkEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire/client layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Reader state
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the long-poll stream (raw chunks).
	LayerTransport Layer = 0
	// LayerWire is the NDJSON event decoding layer.
	LayerWire Layer = 1
	// LayerClient is the multiplexing layer (dedup, fan-out, reader lifecycle).
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer parses a layer name as returned by Layer.String.
func ParseLayer(s string) (Layer, bool) {
	for _, l := range []Layer{LayerTransport, LayerWire, LayerClient} {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryChunk indicates a chunk read from the stream.
	CategoryChunk Category = 0
	// CategoryMessage indicates a decoded event and its delivery outcome.
	CategoryMessage Category = 1
	// CategoryState indicates a reader state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryChunk:
		return "CHUNK"
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as returned by Category.String.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryChunk, CategoryMessage, CategoryState, CategoryError} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// ChunkEvent captures one chunk read from the long-poll body.
type ChunkEvent struct {
	// Size is the chunk size in bytes.
	Size int `cbor:"1,keyasint"`

	// Fragments is the number of non-empty lines in the chunk.
	Fragments int `cbor:"2,keyasint"`

	// Data is the raw chunk (truncated to MaxChunkCapture bytes).
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// NewChunkEvent captures chunk, copying at most MaxChunkCapture bytes.
func NewChunkEvent(chunk []byte, fragments int) *ChunkEvent {
	n := min(len(chunk), MaxChunkCapture)
	data := make([]byte, n)
	copy(data, chunk)
	return &ChunkEvent{
		Size:      len(chunk),
		Fragments: fragments,
		Data:      data,
		Truncated: n < len(chunk),
	}
}

// MessageEvent captures a decoded event and what happened to it.
type MessageEvent struct {
	// EventID is the unique id assigned by the service.
	EventID string `cbor:"1,keyasint"`

	// StreamID is the stream within the channel.
	StreamID string `cbor:"2,keyasint"`

	// Outcome is what the reader did with the event.
	Outcome Outcome `cbor:"3,keyasint"`

	// Deliveries is the number of subscriptions that received the event.
	Deliveries int `cbor:"4,keyasint,omitempty"`

	// BodySize is the size of the raw JSON body in bytes.
	BodySize int `cbor:"5,keyasint,omitempty"`
}

// Outcome is the fate of a decoded event.
type Outcome uint8

const (
	// OutcomeDelivered indicates a new event that was fanned out.
	OutcomeDelivered Outcome = 0
	// OutcomeSuppressed indicates an event id already in the recency cache.
	OutcomeSuppressed Outcome = 1
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "DELIVERED"
	case OutcomeSuppressed:
		return "SUPPRESSED"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a reader state transition.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
