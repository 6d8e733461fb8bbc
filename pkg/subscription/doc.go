// Package subscription implements the local side of channel subscriptions:
// delivery endpoints and the registry the long-poll readers fan out through.
//
// # Endpoints
//
// An Endpoint is an unbounded FIFO queue of events with a producer side and a
// consumer side. Producers never block: Send appends and returns. The
// consumer reads with Receive and drops its end with Close, after which
// producers see the endpoint as closed and skip it.
//
// Producer references are counted. Every registry entry holding an endpoint
// owns one reference, and NewEndpoint hands one to its creator. When the last
// reference is released the endpoint is finished: Receive drains what is
// queued and then reports ErrEndOfStream. This is how consumers learn that
// the reader serving them has terminated.
//
// # Registry
//
// A Registry is a list of subscriptions, each naming a channel address, a
// stream id and an endpoint. Several subscriptions may share channel and
// stream; each receives its own copy of matching events. A registry is not
// safe for concurrent use; the client guards it with a sync.RWMutex (read
// lock for FanOut and HasOpen, write lock for Add and Prune).
//
// # Lifecycle
//
// Closed endpoints are detected lazily: fan-out skips them, and they are
// removed only when a reader terminates and prunes the registry.
package subscription
