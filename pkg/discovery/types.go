package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

const (
	// ServiceType is the DNS-SD service type advertised by megaphone servers.
	ServiceType = "_megaphone._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultBrowseTimeout bounds a Find when the caller sets no deadline.
	DefaultBrowseTimeout = 5 * time.Second

	// TXTVersion is the TXT layout this package understands.
	TXTVersion = "1"
)

// TXT record keys.
const (
	TXTKeyVersion  = "txtvers"
	TXTKeyPath     = "path"
	TXTKeyProtocol = "proto"
	TXTKeyTLS      = "tls"
	TXTKeyFeatures = "feat"
)

var (
	// ErrNotFound is returned when no matching server answered in time.
	ErrNotFound = errors.New("megaphone server not found")

	// ErrUnsupported is returned for a server that speaks another protocol
	// or TXT layout.
	ErrUnsupported = errors.New("unsupported megaphone service")

	// ErrNoAddress is returned when a service has neither an address nor a host.
	ErrNoAddress = errors.New("service has no address")
)

// Service is a discovered megaphone server.
type Service struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []string

	// Path is the long-poll root, always starting with "/".
	Path     string
	Protocol string
	Features wire.Features
	TLS      bool

	TXT TXTRecordMap
}

// NewService builds a Service from a resolved DNS-SD record.
func NewService(instance, host string, port int, addrs []string, txt TXTRecordMap) (*Service, error) {
	info, err := DecodeServiceTXT(txt)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d", ErrUnsupported, port)
	}
	return &Service{
		Instance:  instance,
		Host:      strings.TrimSuffix(host, "."),
		Port:      uint16(port),
		Addresses: addrs,
		Path:      info.Path,
		Protocol:  info.Protocol,
		Features:  info.Features,
		TLS:       info.TLS,
		TXT:       txt,
	}, nil
}

// BaseURL returns the long-poll root of the service. IPv4 addresses are
// preferred over IPv6, and any address over the host name.
func (s *Service) BaseURL() (string, error) {
	host := s.preferredHost()
	if host == "" {
		return "", fmt.Errorf("%w: %s", ErrNoAddress, s.Instance)
	}
	scheme := "http"
	if s.TLS {
		scheme = "https"
	}
	path := s.Path
	if path == "/" {
		path = ""
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(int(s.Port))) + path, nil
}

func (s *Service) preferredHost() string {
	var v6 string
	for _, addr := range s.Addresses {
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			return addr
		}
		// Link-local v6 needs a zone we do not carry.
		if v6 == "" && !ip.IsLinkLocalUnicast() {
			v6 = addr
		}
	}
	if v6 != "" {
		return v6
	}
	return s.Host
}

// String returns a short description for listings.
func (s *Service) String() string {
	u, err := s.BaseURL()
	if err != nil {
		u = "<no address>"
	}
	return fmt.Sprintf("%s (%s)", s.Instance, u)
}
