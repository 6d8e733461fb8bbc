package client

import (
	"errors"
	"fmt"

	"github.com/megaphone-protocol/megaphone-go/pkg/transport"
)

// Client errors.
var (
	// ErrInitialization wraps an error returned by an Initializer.
	ErrInitialization = errors.New("initialization failed")

	// ErrInvalidAddress reports a channel address that does not form a
	// valid long-poll URL with the base URL.
	ErrInvalidAddress = transport.ErrInvalidAddress

	// ErrDeserialization reports an event body that could not be decoded
	// into the requested message type.
	ErrDeserialization = errors.New("deserialization failed")

	// ErrMissingResponse reports that a delayed response ended before any
	// message arrived.
	ErrMissingResponse = errors.New("missing response")

	// ErrStreamEnded reports that a stream's reader terminated and every
	// queued message has been consumed, or that the stream was closed.
	ErrStreamEnded = errors.New("stream ended")

	// ErrClientClosed reports use of a closed client.
	ErrClientClosed = errors.New("client closed")
)

// DecodeError is returned for an event whose body cannot be decoded. It
// matches ErrDeserialization and the underlying decoder error.
type DecodeError struct {
	EventID  string
	StreamID string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: event %s on stream %s: %v", ErrDeserialization, e.EventID, e.StreamID, e.Err)
}

// Unwrap returns ErrDeserialization and the decoder error.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDeserialization, e.Err}
}
