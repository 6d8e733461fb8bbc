package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/megaphone-protocol/megaphone-go/pkg/log"
)

// FilterOptions specifies filtering criteria shared by view, export and
// filter. Empty fields match everything.
type FilterOptions struct {
	ReaderID  string
	Channel   string
	StreamID  string
	TimeStart string
	TimeEnd   string
	Layer     string
	Category  string
}

// Build converts the options into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		ReaderID: o.ReaderID,
		Channel:  o.Channel,
		StreamID: o.StreamID,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if o.Layer != "" {
		l, err := ParseLayerFlag(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	l, ok := log.ParseLayer(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or client)", s)
	}
	return l, nil
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be chunk, message, state, or error)", s)
	}
	return c, nil
}

// RunFilter writes the matching events of path to output and returns how
// many were written.
func RunFilter(path, output string, opts FilterOptions) (int, error) {
	filter, err := opts.Build()
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	count := 0
	for event, err := range reader.All() {
		if err != nil {
			logger.Close()
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}

	if err := logger.Close(); err != nil {
		return count, fmt.Errorf("failed to close output file: %w", err)
	}
	if n := logger.Dropped(); n > 0 {
		return count - n, fmt.Errorf("failed to write %d events", n)
	}
	return count, nil
}
