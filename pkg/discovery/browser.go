package discovery

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds megaphone servers.
type Browser interface {
	// Browse streams servers as they are resolved. The channel is closed
	// when ctx is done.
	Browse(ctx context.Context) (<-chan *Service, error)

	// Find returns the first server with the given instance name, or any
	// server when instance is empty.
	Find(ctx context.Context, instance string) (*Service, error)
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Service is the DNS-SD service type. Default: ServiceType.
	Service string

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string

	// Timeout bounds Find when ctx has no deadline.
	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Service: ServiceType,
		Timeout: DefaultBrowseTimeout,
	}
}

// browseFunc matches zeroconf.Browse.
type browseFunc func(ctx context.Context, service, domain string, entries, removed chan<- *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	browse browseFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.Service == "" {
		config.Service = ServiceType
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultBrowseTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &MDNSBrowser{config: config, browse: zeroconf.Browse}
}

// Browse streams resolved servers. Announcements for an instance already
// seen only add addresses; goodbyes remove them, and an instance whose last
// address is gone is forgotten so a later announcement is reported again.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Service, error) {
	opts, err := b.browserOptions()
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	var gone <-chan *zeroconf.ServiceEntry = removed
	out := make(chan *Service)

	agg := newAggregator()
	go func() {
		defer close(out)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := b.entryToService(entry)
				if svc == nil {
					continue
				}
				if !agg.add(svc) {
					continue
				}
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-gone:
				if !ok {
					gone = nil
					continue
				}
				agg.remove(entry.Instance, entryAddresses(entry))

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := b.browse(ctx, b.config.Service, Domain, entries, removed, opts...); err != nil {
			b.config.Logger.Warn("discovery: browse failed", "service", b.config.Service, "error", err)
		}
	}()

	return out, nil
}

// Find returns the first matching server. Without a deadline on ctx, the
// configured timeout applies.
func (b *MDNSBrowser) Find(ctx context.Context, instance string) (*Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}

	// Cancel browsing once a result is found.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for svc := range results {
		if instance == "" || svc.Instance == instance {
			return svc, nil
		}
	}
	return nil, ErrNotFound
}

func (b *MDNSBrowser) browserOptions() ([]zeroconf.ClientOption, error) {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err != nil {
			return nil, err
		}
		opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
	}
	return opts, nil
}

func (b *MDNSBrowser) entryToService(entry *zeroconf.ServiceEntry) *Service {
	if entry == nil {
		return nil
	}
	svc, err := NewService(entry.Instance, entry.HostName, entry.Port, entryAddresses(entry), StringsToTXTRecords(entry.Text))
	if err != nil {
		b.config.Logger.Debug("discovery: skipping service", "instance", entry.Instance, "error", err)
		return nil
	}
	return svc
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// aggregator tracks services by instance, merging the per-interface
// announcements zeroconf delivers separately. It keeps its own address
// lists so Services handed to callers are never mutated.
type aggregator struct {
	addrs map[string][]string
}

func newAggregator() *aggregator {
	return &aggregator{addrs: make(map[string][]string)}
}

// add records svc and reports whether its instance is new.
func (a *aggregator) add(svc *Service) bool {
	existing, found := a.addrs[svc.Instance]
	a.addrs[svc.Instance] = mergeAddresses(existing, svc.Addresses)
	return !found
}

func (a *aggregator) remove(instance string, addrs []string) {
	existing, found := a.addrs[instance]
	if !found {
		return
	}
	left := removeAddresses(existing, addrs)
	if len(left) == 0 {
		delete(a.addrs, instance)
		return
	}
	a.addrs[instance] = left
}

// addresses returns the merged addresses of instance.
func (a *aggregator) addresses(instance string) []string {
	return a.addrs[instance]
}

func mergeAddresses(existing, added []string) []string {
	existing = append([]string(nil), existing...)
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

func removeAddresses(addresses, gone []string) []string {
	drop := make(map[string]bool, len(gone))
	for _, addr := range gone {
		drop[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !drop[addr] {
			result = append(result, addr)
		}
	}
	return result
}

var _ Browser = (*MDNSBrowser)(nil)
