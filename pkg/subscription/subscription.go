package subscription

import (
	"context"
	"errors"
	"sync"

	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// Endpoint errors.
var (
	ErrEndOfStream = errors.New("end of stream")
	ErrClosed      = errors.New("endpoint closed")
)

// Endpoint is an unbounded event queue with lazily detected close.
type Endpoint struct {
	mu sync.Mutex

	// queued events, oldest first
	queue []wire.Event

	// closed and replaced on every state change
	wake chan struct{}

	// producer references; finished once this reaches zero
	refs     int
	finished bool

	// consumer has dropped its end
	closed bool
}

// NewEndpoint creates an endpoint holding one producer reference for the
// caller. Release it once the endpoint has been handed to its producers.
func NewEndpoint() *Endpoint {
	return &Endpoint{
		wake: make(chan struct{}),
		refs: 1,
	}
}

// Acquire takes an additional producer reference.
// It returns false if the endpoint has already finished.
func (e *Endpoint) Acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return false
	}
	e.refs++
	return true
}

// Release drops a producer reference. Dropping the last one finishes the
// endpoint.
func (e *Endpoint) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return
	}
	e.refs--
	if e.refs <= 0 {
		e.finished = true
		e.notifyLocked()
	}
}

// Send queues an event for the consumer. It never blocks.
// It returns false if the consumer has closed its end or the endpoint is
// finished.
func (e *Endpoint) Send(event wire.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.finished {
		return false
	}
	e.queue = append(e.queue, event)
	e.notifyLocked()
	return true
}

// Closed reports whether the consumer has dropped its end.
func (e *Endpoint) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Finished reports whether every producer reference has been released.
func (e *Endpoint) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

// Len returns the number of queued events.
func (e *Endpoint) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Close drops the consumer end and discards queued events.
// It is safe to call Close multiple times.
func (e *Endpoint) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.queue = nil
	e.notifyLocked()
}

// Receive returns the next queued event, waiting until one arrives.
// It returns ErrEndOfStream once the endpoint is finished and drained,
// ErrClosed after Close, or the context error.
func (e *Endpoint) Receive(ctx context.Context) (wire.Event, error) {
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return wire.Event{}, ErrClosed
		}
		if len(e.queue) > 0 {
			event := e.queue[0]
			e.queue[0] = wire.Event{}
			e.queue = e.queue[1:]
			e.mu.Unlock()
			return event, nil
		}
		if e.finished {
			e.mu.Unlock()
			return wire.Event{}, ErrEndOfStream
		}
		wake := e.wake
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return wire.Event{}, ctx.Err()
		case <-wake:
		}
	}
}

// notifyLocked wakes every waiting receiver. Caller must hold mu.
func (e *Endpoint) notifyLocked() {
	close(e.wake)
	e.wake = make(chan struct{})
}
