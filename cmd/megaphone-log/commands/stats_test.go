package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/megaphone-protocol/megaphone-go/pkg/log"
)

func TestCollect(t *testing.T) {
	path := createTestTraceFile(t, sampleTrace())

	stats, err := Collect(path, FilterOptions{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if stats.TotalEvents != 6 {
		t.Errorf("expected 6 events, got %d", stats.TotalEvents)
	}
	if stats.EventsByLayer[log.LayerClient] != 4 {
		t.Errorf("expected 4 client events, got %d", stats.EventsByLayer[log.LayerClient])
	}
	if stats.Delivered != 1 || stats.Suppressed != 1 || stats.Errors != 1 {
		t.Errorf("unexpected totals: %d delivered, %d suppressed, %d errors", stats.Delivered, stats.Suppressed, stats.Errors)
	}
	if len(stats.Readers) != 1 {
		t.Fatalf("expected 1 reader, got %d", len(stats.Readers))
	}
	for _, rs := range stats.Readers {
		if rs.Attempts != 2 || rs.Chunks != 1 || rs.FinalState != "TERMINATED" || rs.Channel != "/c/1" {
			t.Errorf("unexpected reader stats: %+v", rs)
		}
	}
}

func TestRunStats(t *testing.T) {
	path := createTestTraceFile(t, sampleTrace())

	var buf bytes.Buffer
	if err := RunStats(path, FilterOptions{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 6",
		"Duration:   2s",
		"Messages: 1 delivered, 1 suppressed",
		"Readers: 1",
		"[6f1c2a9e] 6 events, duration 1.5s",
		"Connects: 2",
		"State: TERMINATED (no subscribers)",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestRunStatsEmpty(t *testing.T) {
	path := createTestTraceFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, FilterOptions{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
