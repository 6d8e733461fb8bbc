package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/megaphone-protocol/megaphone-go/pkg/connection"
	"github.com/megaphone-protocol/megaphone-go/pkg/log"
	"github.com/megaphone-protocol/megaphone-go/pkg/transport"
	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// reader runs the long-poll loop for one channel address.
type reader struct {
	id      string
	address string
	eng     *engine
	retrier connection.Retrier
	logger  *slog.Logger

	state   connection.State
	started bool
	attempt int
}

func newReader(e *engine, address string) *reader {
	id := uuid.NewString()
	return &reader{
		id:      id,
		address: address,
		eng:     e,
		retrier: e.policy.Retrier(),
		logger:  e.logger.With("readerID", id, "channel", address),
	}
}

// run loops Connecting, Streaming, Deciding until the reader terminates,
// then releases the channel.
func (r *reader) run(ctx context.Context) {
	r.eng.readers.Add(1)
	defer r.eng.readers.Add(-1)

	reason := r.loop(ctx)

	cleared, pruned := r.eng.release(r.address)
	r.logger.Debug("reader: terminated",
		"reason", reason,
		"channelCleared", cleared,
		"pruned", pruned)
	r.setState(connection.StateTerminated, reason)
}

func (r *reader) loop(ctx context.Context) string {
	reason := "started"
	for {
		body, err := r.connect(ctx, reason)
		if err != nil {
			if ctx.Err() != nil {
				return "client closed"
			}
			return "connect failed: " + err.Error()
		}

		reason = r.stream(ctx, body)

		r.setState(connection.StateDeciding, reason)
		switch {
		case ctx.Err() != nil:
			return "client closed"
		case !r.eng.boundTo(r.address):
			return "channel replaced"
		case !r.eng.hasSubscribers(r.address):
			return "no subscribers"
		}
		reason = "reconnect"
	}
}

// connect opens the long poll, consulting the failure policy on errors.
func (r *reader) connect(ctx context.Context, reason string) (io.ReadCloser, error) {
	for {
		r.attempt++
		r.setState(connection.StateConnecting, reason)

		body, err := r.eng.poller.Open(ctx, r.address)
		if err == nil {
			r.retrier.Reset()
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.logger.Warn("reader: long poll failed", "attempt", r.attempt, "error", err)
		r.traceError(log.LayerTransport, err, "open")

		delay, retry := r.retrier.Next(err)
		if !retry {
			return nil, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		reason = "retry after " + delay.String()
	}
}

// stream consumes body chunk by chunk and returns why it ended.
func (r *reader) stream(ctx context.Context, body io.ReadCloser) string {
	defer body.Close()
	r.setState(connection.StateStreaming, "")

	chunks := transport.NewChunkReader(body, r.eng.bufSize)
	for {
		chunk, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			return "end of body"
		}
		if err != nil {
			if ctx.Err() != nil {
				return "client closed"
			}
			r.logger.Warn("reader: stream read failed", "error", err)
			r.traceError(log.LayerTransport, err, "read")
			return "read failed"
		}
		r.handleChunk(chunk)
	}
}

// handleChunk parses every line of chunk independently. A record split
// across chunks fails to parse in both halves.
func (r *reader) handleChunk(chunk []byte) {
	if err := wire.CheckChunk(chunk); err != nil {
		r.logger.Warn("reader: skipping chunk", "size", len(chunk), "error", err)
		r.traceError(log.LayerWire, err, "check chunk")
		return
	}

	fragments := wire.SplitChunk(chunk)
	r.emit(log.Event{
		Layer:    log.LayerTransport,
		Category: log.CategoryChunk,
		Chunk:    log.NewChunkEvent(chunk, len(fragments)),
	})

	for _, fragment := range fragments {
		event, err := wire.DecodeEvent(fragment)
		if err != nil {
			r.logger.Warn("reader: skipping malformed event", "error", err)
			r.traceError(log.LayerWire, err, "decode event")
			continue
		}

		deliveries, fresh := r.eng.dispatch(r.address, event)
		outcome := log.OutcomeDelivered
		if !fresh {
			outcome = log.OutcomeSuppressed
		}
		r.logger.Debug("reader: event",
			"eventID", event.EventID,
			"streamID", event.StreamID,
			"outcome", outcome.String(),
			"deliveries", deliveries)
		r.emit(log.Event{
			Layer:    log.LayerClient,
			Category: log.CategoryMessage,
			Message: &log.MessageEvent{
				EventID:    event.EventID,
				StreamID:   event.StreamID,
				Outcome:    outcome,
				Deliveries: deliveries,
				BodySize:   len(event.Body),
			},
		})
	}
}

func (r *reader) setState(state connection.State, reason string) {
	var old string
	if r.started {
		old = r.state.String()
	}
	r.state = state
	r.started = true
	r.emit(log.Event{
		Layer:    log.LayerClient,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: old,
			NewState: state.String(),
			Reason:   reason,
		},
	})
}

func (r *reader) traceError(layer log.Layer, err error, op string) {
	r.emit(log.Event{
		Layer:    layer,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: op,
		},
	})
}

func (r *reader) emit(event log.Event) {
	event.Timestamp = time.Now()
	event.ReaderID = r.id
	event.Channel = r.address
	event.Attempt = r.attempt
	r.eng.trace.Log(event)
}
