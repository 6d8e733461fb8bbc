package client

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/megaphone-protocol/megaphone-go/pkg/connection"
	"github.com/megaphone-protocol/megaphone-go/pkg/log"
	"github.com/megaphone-protocol/megaphone-go/pkg/recency"
	"github.com/megaphone-protocol/megaphone-go/pkg/subscription"
	"github.com/megaphone-protocol/megaphone-go/pkg/transport"
	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// engine is the state shared by a client and its readers.
//
// Lock order: chanMu, subsMu, seenMu.
type engine struct {
	base    string
	poller  transport.Poller
	policy  connection.FailurePolicy
	bufSize int
	logger  *slog.Logger
	trace   log.Logger

	// chanMu guards channel, the bound address ("" if none).
	chanMu  sync.RWMutex
	channel string

	subsMu sync.RWMutex
	subs   *subscription.Registry

	// seenMu makes check-and-record plus fan-out atomic across readers.
	seenMu sync.Mutex
	seen   *recency.Cache

	readers atomic.Int32
}

// boundTo reports whether address is still the bound channel.
func (e *engine) boundTo(address string) bool {
	e.chanMu.RLock()
	defer e.chanMu.RUnlock()
	return e.channel == address
}

// hasSubscribers reports whether address has an open subscription.
func (e *engine) hasSubscribers(address string) bool {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()
	return e.subs.HasOpen(address)
}

// dispatch delivers event to the subscriptions of address unless its id
// has been seen. It returns the number of deliveries and whether the event
// was new.
func (e *engine) dispatch(address string, event wire.Event) (int, bool) {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()
	e.seenMu.Lock()
	defer e.seenMu.Unlock()

	if e.seen.Contains(event.EventID) {
		return 0, false
	}
	e.seen.Record(event.EventID)
	return e.subs.FanOut(address, event.StreamID, event), true
}

// release clears the bound channel if it is still address and prunes every
// subscription that is closed or bound to address. It reports whether the
// channel was cleared and how many subscriptions were removed.
func (e *engine) release(address string) (bool, int) {
	e.chanMu.Lock()
	defer e.chanMu.Unlock()
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	cleared := false
	if e.channel == address {
		e.channel = ""
		cleared = true
	}
	return cleared, e.subs.Prune(subscription.ClosedOrBoundTo(address))
}
