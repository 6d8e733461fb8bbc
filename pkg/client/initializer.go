package client

import "context"

// StreamSpec names the channel to join and the streams to subscribe to.
type StreamSpec struct {
	Channel string
	Streams []string
}

// Initializer decides which channel and streams a registration joins.
//
// Initialize is called with the address the client is currently bound to,
// or "" if none. It runs while the client's channel state is locked, so it
// must not call back into the same client.
type Initializer interface {
	Initialize(ctx context.Context, current string) (StreamSpec, error)
}

// InitializerFunc adapts a function to the Initializer interface.
type InitializerFunc func(ctx context.Context, current string) (StreamSpec, error)

// Initialize calls f.
func (f InitializerFunc) Initialize(ctx context.Context, current string) (StreamSpec, error) {
	return f(ctx, current)
}

// Static returns an initializer that always joins channel with the given
// streams.
func Static(channel string, streams ...string) Initializer {
	spec := StreamSpec{Channel: channel, Streams: append([]string(nil), streams...)}
	return InitializerFunc(func(context.Context, string) (StreamSpec, error) {
		return StreamSpec{Channel: spec.Channel, Streams: append([]string(nil), spec.Streams...)}, nil
	})
}
