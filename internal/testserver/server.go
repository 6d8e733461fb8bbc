// Package testserver provides a scripted megaphone long-poll server for
// tests.
//
// Each channel address has a queue of connection scripts. A request takes
// the next script and writes its chunks, flushing after each one. Once a
// channel has no scripts left, requests are held open (like an idle long
// poll) until the client goes away or Release is called.
package testserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// Script is the response for one connection.
type Script struct {
	// Status is the response status (default 200).
	Status int

	// Chunks are written and flushed one at a time.
	Chunks [][]byte

	// Gap is slept between chunks so the client reads them separately.
	Gap time.Duration
}

// Chunks builds a 200 script from chunks.
func Chunks(chunks ...[]byte) Script {
	return Script{Chunks: chunks}
}

// Status builds a script that fails with the given HTTP status.
func Status(code int) Script {
	return Script{Status: code}
}

type channel struct {
	scripts []Script
	conns   int
	held    int
	release chan struct{}
}

// Server is a scripted long-poll server.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	channels map[string]*channel
	changed  chan struct{}
	accepts  []string
}

// New starts a server and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		channels: make(map[string]*channel),
		changed:  make(chan struct{}),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return s.srv.URL
}

// Client returns an HTTP client configured for the server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// Close releases all held requests and shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	for _, ch := range s.channels {
		ch.releaseLocked()
	}
	s.mu.Unlock()
	s.srv.CloseClientConnections()
	s.srv.Close()
}

// Script queues connection scripts for address, in order.
func (s *Server) Script(address string, scripts ...Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.channelLocked(address)
	ch.scripts = append(ch.scripts, scripts...)
	s.notifyLocked()
}

// Release ends every request currently held open for address with an empty
// body. Later requests are held again.
func (s *Server) Release(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelLocked(address).releaseLocked()
}

// Connections returns the number of requests received for address.
func (s *Server) Connections(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[address]; ok {
		return ch.conns
	}
	return 0
}

// Pending returns the number of scripts not yet served for address.
func (s *Server) Pending(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[address]; ok {
		return len(ch.scripts)
	}
	return 0
}

// Held returns the number of requests for address currently held open.
func (s *Server) Held(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[address]; ok {
		return ch.held
	}
	return 0
}

// AcceptHeaders returns the Accept header of every request received.
func (s *Server) AcceptHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.accepts...)
}

// WaitFor blocks until cond holds or the timeout expires, and reports
// whether cond held. cond is re-evaluated whenever the server state changes.
func (s *Server) WaitFor(timeout time.Duration, cond func() bool) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()
		if cond() {
			return true
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return cond()
		}
	}
}

// WaitHeld blocks until n requests for address are held open.
func (s *Server) WaitHeld(address string, n int, timeout time.Duration) bool {
	return s.WaitFor(timeout, func() bool { return s.Held(address) >= n })
}

func (s *Server) channelLocked(address string) *channel {
	ch, ok := s.channels[address]
	if !ok {
		ch = &channel{release: make(chan struct{})}
		s.channels[address] = ch
	}
	return ch
}

func (ch *channel) releaseLocked() {
	close(ch.release)
	ch.release = make(chan struct{})
}

func (s *Server) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	s.accepts = append(s.accepts, r.Header.Get("Accept"))
	ch := s.channelLocked(address)
	ch.conns++
	var script *Script
	if len(ch.scripts) > 0 {
		script = &ch.scripts[0]
		ch.scripts = ch.scripts[1:]
	}
	release := ch.release
	if script == nil {
		ch.held++
	}
	s.notifyLocked()
	s.mu.Unlock()

	if script == nil {
		s.hold(w, r, ch, release)
		return
	}

	status := script.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", wire.ContentType)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	for i, chunk := range script.Chunks {
		if i > 0 && script.Gap > 0 {
			select {
			case <-time.After(script.Gap):
			case <-r.Context().Done():
				return
			}
		}
		if _, err := w.Write(chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) hold(w http.ResponseWriter, r *http.Request, ch *channel, release chan struct{}) {
	w.Header().Set("Content-Type", wire.ContentType)
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	select {
	case <-release:
	case <-r.Context().Done():
	}

	s.mu.Lock()
	ch.held--
	s.notifyLocked()
	s.mu.Unlock()
}

// Line encodes one event record terminated by a newline. body is
// marshaled to JSON.
func Line(eventID, streamID string, body any) []byte {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("testserver: marshal body: %v", err))
	}
	line, err := wire.EncodeEvent(wire.Event{EventID: eventID, StreamID: streamID, Body: raw})
	if err != nil {
		panic(fmt.Sprintf("testserver: encode event: %v", err))
	}
	return line
}

// Join concatenates lines into one chunk.
func Join(lines ...[]byte) []byte {
	var out []byte
	for _, l := range lines {
		out = append(out, l...)
	}
	return out
}

// Body is an io.ReadCloser that returns one chunk per Read call, then
// io.EOF (or Err, if set). It stands in for a response body when a test
// drives the reader through a mock poller.
type Body struct {
	mu     sync.Mutex
	chunks [][]byte
	Err    error
	closed bool
}

// NewBody creates a body from chunks.
func NewBody(chunks ...[]byte) *Body {
	return &Body{chunks: chunks}
}

// Read returns the next chunk. A chunk longer than p is split.
func (b *Body) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	if len(b.chunks) == 0 {
		if b.Err != nil {
			return 0, b.Err
		}
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	if n < len(b.chunks[0]) {
		b.chunks[0] = b.chunks[0][n:]
	} else {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

// Close marks the body closed.
func (b *Body) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close was called.
func (b *Body) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
