package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// DefaultReadBufferSize is the size of the buffer a chunk is read into.
const DefaultReadBufferSize = 64 * 1024

// Transport errors.
var (
	ErrInvalidAddress = errors.New("invalid channel address")
	ErrTransport      = errors.New("transport failure")
)

// Poller opens long-poll streams for channel addresses.
type Poller interface {
	// Open issues the long-poll request for address and returns the
	// streamed response body. The caller must close it.
	Open(ctx context.Context, address string) (io.ReadCloser, error)
}

// HTTPPollerConfig configures an HTTPPoller.
type HTTPPollerConfig struct {
	// BaseURL is the service root. Surrounding slashes are trimmed before
	// an address is appended.
	BaseURL string

	// Client performs the requests (default: a client without timeout,
	// since a long poll stays open indefinitely).
	Client *http.Client

	// Header is added to every request.
	Header http.Header
}

// HTTPPoller is a Poller that performs streamed HTTP GET requests.
type HTTPPoller struct {
	base   string
	client *http.Client
	header http.Header
}

// NewHTTPPoller creates a poller for the given service root.
func NewHTTPPoller(config HTTPPollerConfig) (*HTTPPoller, error) {
	base, err := ParseBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}

	client := config.Client
	if client == nil {
		client = &http.Client{}
	}

	return &HTTPPoller{
		base:   base,
		client: client,
		header: config.Header.Clone(),
	}, nil
}

// BaseURL returns the trimmed service root.
func (p *HTTPPoller) BaseURL() string {
	return p.base
}

// URL builds the long-poll URL for address.
func (p *HTTPPoller) URL(address string) (*url.URL, error) {
	return JoinURL(p.base, address)
}

// Open performs the GET request for address. A non-2xx response is
// reported as ErrTransport.
func (p *HTTPPoller) Open(ctx context.Context, address string) (io.ReadCloser, error) {
	u, err := p.URL(address)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	for k, vs := range p.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", wire.ContentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, u.Redacted(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: unexpected status %s", ErrTransport, u.Redacted(), resp.Status)
	}

	return &body{ReadCloser: resp.Body}, nil
}

// ParseBaseURL trims surrounding slashes from base and checks that it is an
// absolute http or https URL.
func ParseBaseURL(base string) (string, error) {
	trimmed := strings.Trim(base, "/")
	if _, err := parseHTTPURL(trimmed); err != nil {
		return "", fmt.Errorf("%w: base URL %q: %w", ErrInvalidAddress, base, err)
	}
	return trimmed, nil
}

// JoinURL appends address to base (after trimming slashes from base) and
// checks that the result is an absolute http or https URL.
func JoinURL(base, address string) (*url.URL, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	raw := strings.Trim(base, "/") + "/" + address
	u, err := parseHTTPURL(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, address, err)
	}
	return u, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

// body wraps read errors other than io.EOF in ErrTransport.
type body struct {
	io.ReadCloser
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: read: %w", ErrTransport, err)
	}
	return n, err
}

// ChunkReader hands out the chunks of a stream, one per Read call of the
// underlying reader.
type ChunkReader struct {
	r   io.Reader
	buf []byte
}

// NewChunkReader creates a chunk reader with the given buffer size
// (DefaultReadBufferSize if size < 1).
func NewChunkReader(r io.Reader, size int) *ChunkReader {
	if size < 1 {
		size = DefaultReadBufferSize
	}
	return &ChunkReader{r: r, buf: make([]byte, size)}
}

// Next returns the next non-empty chunk. The returned slice is only valid
// until the next call. At the end of the stream Next returns io.EOF.
func (c *ChunkReader) Next() ([]byte, error) {
	for {
		n, err := c.r.Read(c.buf)
		if n > 0 {
			// Data delivered alongside an error is returned first; the
			// error resurfaces on the next call.
			return c.buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}
