package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/megaphone-protocol/megaphone-go/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents      int
	EventsByLayer    map[log.Layer]int
	EventsByCategory map[log.Category]int
	Readers          map[string]*ReaderStats
	Delivered        int
	Suppressed       int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// ReaderStats holds statistics for a single long-poll reader.
type ReaderStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Channel    string
	Attempts   int
	Chunks     int
	Bytes      int
	Delivered  int
	Suppressed int
	FinalState string
	Reason     string
}

// Collect reads the matching events of path into Stats.
func Collect(path string, opts FilterOptions) (*Stats, error) {
	filter, err := opts.Build()
	if err != nil {
		return nil, err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:    make(map[log.Layer]int),
		EventsByCategory: make(map[log.Category]int),
		Readers:          make(map[string]*ReaderStats),
	}

	for event, err := range reader.All() {
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	rs, ok := s.Readers[event.ReaderID]
	if !ok {
		rs = &ReaderStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Readers[event.ReaderID] = rs
	}
	rs.Events++
	if event.Timestamp.After(rs.LastSeen) {
		rs.LastSeen = event.Timestamp
	}
	if rs.Channel == "" {
		rs.Channel = event.Channel
	}
	rs.Attempts = max(rs.Attempts, event.Attempt)

	switch {
	case event.Chunk != nil:
		rs.Chunks++
		rs.Bytes += event.Chunk.Size
	case event.Message != nil:
		if event.Message.Outcome == log.OutcomeSuppressed {
			rs.Suppressed++
			s.Suppressed++
		} else {
			rs.Delivered++
			s.Delivered++
		}
	case event.StateChange != nil:
		rs.FinalState = event.StateChange.NewState
		rs.Reason = event.StateChange.Reason
	case event.Error != nil:
		s.Errors++
	}
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, opts FilterOptions, w io.Writer) error {
	stats, err := Collect(path, opts)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Megaphone Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerClient} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryChunk, log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Messages: %d delivered, %d suppressed\n", stats.Delivered, stats.Suppressed)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Readers: %d\n", len(stats.Readers))
	if len(stats.Readers) > 0 {
		type readerInfo struct {
			id    string
			stats *ReaderStats
		}
		readers := make([]readerInfo, 0, len(stats.Readers))
		for id, rs := range stats.Readers {
			readers = append(readers, readerInfo{id, rs})
		}
		sort.Slice(readers, func(i, j int) bool {
			return readers[i].stats.FirstSeen.Before(readers[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, r := range readers {
			duration := r.stats.LastSeen.Sub(r.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(r.id), r.stats.Events, duration)
			if r.stats.Channel != "" {
				fmt.Fprintf(w, "           Channel: %s\n", r.stats.Channel)
			}
			if r.stats.Attempts > 0 {
				fmt.Fprintf(w, "           Connects: %d\n", r.stats.Attempts)
			}
			if r.stats.Chunks > 0 {
				fmt.Fprintf(w, "           Chunks: %d (%d bytes)\n", r.stats.Chunks, r.stats.Bytes)
			}
			if r.stats.Delivered+r.stats.Suppressed > 0 {
				fmt.Fprintf(w, "           Messages: %d delivered, %d suppressed\n", r.stats.Delivered, r.stats.Suppressed)
			}
			if r.stats.FinalState != "" {
				fmt.Fprintf(w, "           State: %s", r.stats.FinalState)
				if r.stats.Reason != "" {
					fmt.Fprintf(w, " (%s)", r.stats.Reason)
				}
				fmt.Fprintln(w)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
