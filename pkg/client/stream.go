package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/megaphone-protocol/megaphone-go/pkg/subscription"
	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// Stream is a sequence of messages of type M decoded from event bodies.
// It is safe for use by one consumer goroutine; Close may be called from
// any goroutine.
type Stream[M any] struct {
	endpoint *subscription.Endpoint
}

// Subscribe registers initializer with c and returns the decoded message stream.
func Subscribe[M any](ctx context.Context, c *Client, initializer Initializer) (*Stream[M], error) {
	endpoint, err := c.Register(ctx, initializer)
	if err != nil {
		return nil, err
	}
	return &Stream[M]{endpoint: endpoint}, nil
}

// Next waits for the next message. A body that cannot be decoded into M is
// reported as a *DecodeError; the stream continues with the next event.
// Next returns ErrStreamEnded once the reader has terminated and every
// queued message was consumed, or after Close.
func (s *Stream[M]) Next(ctx context.Context) (M, error) {
	var msg M
	event, err := s.endpoint.Receive(ctx)
	if err != nil {
		if errors.Is(err, subscription.ErrEndOfStream) || errors.Is(err, subscription.ErrClosed) {
			return msg, fmt.Errorf("%w: %w", ErrStreamEnded, err)
		}
		return msg, err
	}
	return decode[M](event)
}

// All iterates over the stream until it ends. Decode errors are yielded
// and iteration continues. A context error is yielded once and ends the
// iteration.
func (s *Stream[M]) All(ctx context.Context) iter.Seq2[M, error] {
	return func(yield func(M, error) bool) {
		for {
			msg, err := s.Next(ctx)
			if errors.Is(err, ErrStreamEnded) {
				return
			}
			if !yield(msg, err) {
				return
			}
			if err != nil && !errors.Is(err, ErrDeserialization) {
				return
			}
		}
	}
}

// Close drops the stream. Queued messages are discarded and the reader
// stops delivering to it; the subscription is removed at the reader's next
// decision point.
func (s *Stream[M]) Close() {
	s.endpoint.Close()
}

// Endpoint returns the underlying delivery endpoint.
func (s *Stream[M]) Endpoint() *subscription.Endpoint {
	return s.endpoint
}

// DelayedResponse registers initializer with c and waits for the first message.
// It returns ErrMissingResponse if the reader terminates before any message
// arrives and a *DecodeError if the first message cannot be decoded. The
// subscription is closed before returning.
func DelayedResponse[M any](ctx context.Context, c *Client, initializer Initializer) (M, error) {
	var zero M
	stream, err := Subscribe[M](ctx, c, initializer)
	if err != nil {
		return zero, err
	}
	defer stream.Close()

	msg, err := stream.Next(ctx)
	if errors.Is(err, ErrStreamEnded) {
		return zero, ErrMissingResponse
	}
	return msg, err
}

func decode[M any](event wire.Event) (M, error) {
	var msg M
	if err := json.Unmarshal(event.Body, &msg); err != nil {
		var zero M
		return zero, &DecodeError{EventID: event.EventID, StreamID: event.StreamID, Err: err}
	}
	return msg, nil
}
