package subscription

import (
	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// Subscription binds an endpoint to one stream of one channel.
type Subscription struct {
	// ChannelAddress is the channel the subscription was created for.
	ChannelAddress string

	// StreamID selects events within the channel.
	StreamID string

	// Endpoint receives matching events.
	Endpoint *Endpoint
}

// Closed reports whether the subscription's consumer has gone away.
func (s *Subscription) Closed() bool {
	return s.Endpoint.Closed()
}

// Registry holds the active subscriptions of a client.
// It is not safe for concurrent use.
type Registry struct {
	subs []*Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a subscription and takes a producer reference on its endpoint.
// Subscriptions are not deduplicated.
func (r *Registry) Add(sub *Subscription) {
	sub.Endpoint.Acquire()
	r.subs = append(r.subs, sub)
}

// FanOut delivers a copy of event to every open subscription matching
// channel and stream. It returns the number of deliveries.
func (r *Registry) FanOut(channel, stream string, event wire.Event) int {
	delivered := 0
	for _, sub := range r.subs {
		if sub.ChannelAddress != channel || sub.StreamID != stream {
			continue
		}
		if sub.Closed() {
			continue
		}
		if sub.Endpoint.Send(event.Clone()) {
			delivered++
		}
	}
	return delivered
}

// Prune removes every subscription for which remove returns true and
// releases its producer reference. It returns the number removed.
func (r *Registry) Prune(remove func(*Subscription) bool) int {
	kept := r.subs[:0]
	var removed []*Subscription
	for _, sub := range r.subs {
		if remove(sub) {
			removed = append(removed, sub)
			continue
		}
		kept = append(kept, sub)
	}
	for i := len(kept); i < len(r.subs); i++ {
		r.subs[i] = nil
	}
	r.subs = kept

	for _, sub := range removed {
		sub.Endpoint.Release()
	}
	return len(removed)
}

// HasOpen reports whether any subscription bound to channel still has an
// open endpoint.
func (r *Registry) HasOpen(channel string) bool {
	for _, sub := range r.subs {
		if sub.ChannelAddress == channel && !sub.Closed() {
			return true
		}
	}
	return false
}

// Len returns the number of registered subscriptions, open or not.
func (r *Registry) Len() int {
	return len(r.subs)
}

// Channels returns the number of subscriptions per channel address.
func (r *Registry) Channels() map[string]int {
	counts := make(map[string]int)
	for _, sub := range r.subs {
		counts[sub.ChannelAddress]++
	}
	return counts
}

// ClosedOrBoundTo returns a Prune predicate matching closed subscriptions and
// every subscription bound to channel.
func ClosedOrBoundTo(channel string) func(*Subscription) bool {
	return func(sub *Subscription) bool {
		return sub.Closed() || sub.ChannelAddress == channel
	}
}
