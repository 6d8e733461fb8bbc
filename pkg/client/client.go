package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/megaphone-protocol/megaphone-go/pkg/connection"
	"github.com/megaphone-protocol/megaphone-go/pkg/log"
	"github.com/megaphone-protocol/megaphone-go/pkg/recency"
	"github.com/megaphone-protocol/megaphone-go/pkg/subscription"
	"github.com/megaphone-protocol/megaphone-go/pkg/transport"
	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the root the channel address is appended to.
	// Required; must be an absolute http or https URL.
	BaseURL string

	// RecencyCacheCapacity is the number of event ids remembered for
	// duplicate suppression (default: recency.DefaultCapacity).
	RecencyCacheCapacity int

	// ReadBufferSize bounds the size of one chunk read from a stream
	// (default: transport.DefaultReadBufferSize).
	ReadBufferSize int

	// HTTPClient performs the long-poll requests when Poller is nil.
	HTTPClient *http.Client

	// Header is added to every long-poll request when Poller is nil.
	Header http.Header

	// Poller opens long-poll streams. Overrides HTTPClient and Header.
	Poller transport.Poller

	// FailurePolicy decides what a reader does when a long poll cannot be
	// opened (default: connection.Terminate).
	FailurePolicy connection.FailurePolicy

	// Logger is the optional logger for operational output
	// (default: slog.Default()).
	Logger *slog.Logger

	// TraceLogger receives reader trace events (default: log.NoopLogger).
	TraceLogger log.Logger
}

// Client multiplexes channel streams onto subscriptions.
// It is safe for concurrent use.
type Client struct {
	eng *engine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// guarded by eng.chanMu
	closed bool
}

// New creates a client.
func New(config Config) (*Client, error) {
	base, err := transport.ParseBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}

	if config.RecencyCacheCapacity <= 0 {
		config.RecencyCacheCapacity = recency.DefaultCapacity
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = transport.DefaultReadBufferSize
	}
	if config.FailurePolicy == nil {
		config.FailurePolicy = connection.Terminate
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.TraceLogger == nil {
		config.TraceLogger = log.NoopLogger{}
	}

	poller := config.Poller
	if poller == nil {
		poller, err = transport.NewHTTPPoller(transport.HTTPPollerConfig{
			BaseURL: base,
			Client:  config.HTTPClient,
			Header:  config.Header,
		})
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		eng: &engine{
			base:    base,
			poller:  poller,
			policy:  config.FailurePolicy,
			bufSize: config.ReadBufferSize,
			logger:  config.Logger,
			trace:   config.TraceLogger,
			subs:    subscription.NewRegistry(),
			seen:    recency.New(config.RecencyCacheCapacity),
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Register joins the channel chosen by initializer and returns the endpoint the
// subscribed events are delivered to.
//
// The initializer runs with the channel state and the subscription registry
// locked. One subscription per stream is added, all sharing the returned
// endpoint. If the channel differs from the bound one it becomes the bound
// channel and a reader is started for it. An initializer error is returned
// wrapped in ErrInitialization; an unusable channel address yields
// ErrInvalidAddress. In both cases nothing changes.
//
// The endpoint ends (Receive returns subscription.ErrEndOfStream) once the
// channel's reader terminates, or immediately if the stream spec names no streams.
// Close it when no longer interested.
func (c *Client) Register(ctx context.Context, initializer Initializer) (*subscription.Endpoint, error) {
	if initializer == nil {
		return nil, fmt.Errorf("%w: nil initializer", ErrInitialization)
	}
	e := c.eng

	e.chanMu.Lock()
	e.subsMu.Lock()
	unlock := func() {
		e.subsMu.Unlock()
		e.chanMu.Unlock()
	}

	if c.closed {
		unlock()
		return nil, ErrClientClosed
	}

	current := e.channel
	spec, err := initializer.Initialize(ctx, current)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	if _, err := transport.JoinURL(e.base, spec.Channel); err != nil {
		unlock()
		return nil, err
	}

	endpoint := subscription.NewEndpoint()
	for _, stream := range spec.Streams {
		e.subs.Add(&subscription.Subscription{
			ChannelAddress: spec.Channel,
			StreamID:       stream,
			Endpoint:       endpoint,
		})
	}

	var r *reader
	if spec.Channel != current {
		e.channel = spec.Channel
		r = newReader(e, spec.Channel)
		c.wg.Add(1)
	}
	unlock()

	// Hand the endpoint over to the registry entries.
	endpoint.Release()

	info, _ := wire.ParseChannelInfo(spec.Channel)
	e.logger.Debug("Register: joined channel",
		"channel", spec.Channel,
		"agent", info.AgentID,
		"previous", current,
		"streams", spec.Streams,
		"newReader", r != nil)

	if r != nil {
		go func() {
			defer c.wg.Done()
			r.run(c.ctx)
		}()
	}
	return endpoint, nil
}

// Channel returns the bound channel address.
func (c *Client) Channel() (string, bool) {
	c.eng.chanMu.RLock()
	defer c.eng.chanMu.RUnlock()
	return c.eng.channel, c.eng.channel != ""
}

// Status is a snapshot of the client state.
type Status struct {
	// Channel is the bound channel address ("" if none).
	Channel string

	// Subscriptions is the number of registered subscriptions.
	Subscriptions int

	// Channels counts subscriptions per channel address.
	Channels map[string]int

	// CachedEvents is the number of event ids in the recency cache.
	CachedEvents int

	// CacheCapacity is the capacity of the recency cache.
	CacheCapacity int

	// CachedIDs lists the cached event ids, oldest first.
	CachedIDs []string

	// Readers is the number of running readers.
	Readers int
}

// Status returns a snapshot of the client state.
func (c *Client) Status() Status {
	e := c.eng
	var s Status

	e.chanMu.RLock()
	s.Channel = e.channel
	e.chanMu.RUnlock()

	e.subsMu.RLock()
	s.Subscriptions = e.subs.Len()
	s.Channels = e.subs.Channels()
	e.subsMu.RUnlock()

	e.seenMu.Lock()
	s.CachedEvents = e.seen.Len()
	s.CacheCapacity = e.seen.Capacity()
	s.CachedIDs = e.seen.IDs()
	e.seenMu.Unlock()

	s.Readers = int(e.readers.Load())
	return s
}

// Close stops every reader and waits for them to terminate. Endpoints
// still registered afterwards are ended. Later registrations fail with
// ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	e := c.eng

	e.chanMu.Lock()
	if c.closed {
		e.chanMu.Unlock()
		return nil
	}
	c.closed = true
	e.chanMu.Unlock()

	c.cancel()
	c.wg.Wait()

	e.chanMu.Lock()
	e.subsMu.Lock()
	e.channel = ""
	pruned := e.subs.Prune(func(*subscription.Subscription) bool { return true })
	e.subsMu.Unlock()
	e.chanMu.Unlock()

	if pruned > 0 {
		e.logger.Debug("Close: ended remaining subscriptions", "count", pruned)
	}
	return nil
}
