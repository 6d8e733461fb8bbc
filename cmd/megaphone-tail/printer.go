package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// Printer writes received events, one per line. It is safe for concurrent
// use by several followers.
type Printer struct {
	mu  sync.Mutex
	w   io.Writer
	raw bool
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// SetRaw switches between "stream event body" lines (false) and NDJSON
// event records (true).
func (p *Printer) SetRaw(raw bool) {
	p.mu.Lock()
	p.raw = raw
	p.mu.Unlock()
}

// PrintEvent writes one event.
func (p *Printer) PrintEvent(event wire.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.raw {
		line, err := wire.EncodeEvent(event)
		if err != nil {
			fmt.Fprintf(p.w, "# unprintable event %s: %v\n", event.EventID, err)
			return
		}
		_, _ = p.w.Write(line)
		return
	}
	fmt.Fprintf(p.w, "[%s] %s %s\n", event.StreamID, event.EventID, bodyString(event.Body))
}

// PrintBody writes a bare event body.
func (p *Printer) PrintBody(body json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, bodyString(body))
}

func bodyString(body json.RawMessage) string {
	if len(body) == 0 {
		return "null"
	}
	return string(body)
}
