package connection

import (
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		// Expected sequence (without jitter): 1s, 2s, 4s, 8s, 16s, 32s, 60s, 60s...
		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			60 * time.Second,
			60 * time.Second, // Should stay at max
		}

		for i, exp := range expected {
			// Get the base (current) value before adding jitter
			base := b.Current()
			_ = b.Next() // Advance

			// Allow for some floating point imprecision
			if base < exp-time.Millisecond || base > exp+time.Millisecond {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		samples := make([]time.Duration, 10)
		for i := range samples {
			samples[i] = NewBackoff().Next()
		}

		// All samples should be between 1s and 1.25s (with jitter)
		for i, s := range samples {
			if s < 1*time.Second || s > time.Duration(float64(1*time.Second)*1.25)+time.Millisecond {
				t.Errorf("Sample %d: %v out of expected range [1s, 1.25s]", i, s)
			}
		}

		// At least some samples should be different (jitter should vary)
		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("All jittered samples are identical - jitter may not be working")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()

		// Advance a few times
		for i := 0; i < 5; i++ {
			b.Next()
		}

		if b.Current() <= InitialBackoff {
			t.Error("Backoff should have increased")
		}

		// Reset
		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("Attempts", func(t *testing.T) {
		b := NewBackoff()

		if b.Attempts() != 0 {
			t.Errorf("Initial Attempts() = %d, want 0", b.Attempts())
		}

		for i := 1; i <= 5; i++ {
			b.Next()
			if b.Attempts() != i {
				t.Errorf("After %d calls, Attempts() = %d", i, b.Attempts())
			}
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2.0,
			Jitter:     0, // No jitter for deterministic test
		})

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond, // Max
			500 * time.Millisecond,
		}

		for i, exp := range expected {
			got := b.Next()
			if got != exp {
				t.Errorf("Attempt %d: got %v, want %v", i, got, exp)
			}
		}
	})
}

func TestTerminatePolicy(t *testing.T) {
	r := Terminate.Retrier()

	delay, retry := r.Next(errors.New("dial failed"))
	if retry {
		t.Error("Terminate policy asked for a retry")
	}
	if delay != 0 {
		t.Errorf("delay = %v, want 0", delay)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("BoundedAttempts", func(t *testing.T) {
		p := RetryWithBackoff{
			Backoff: BackoffConfig{
				Initial:    10 * time.Millisecond,
				Max:        40 * time.Millisecond,
				Multiplier: 2.0,
				Jitter:     0,
			},
			MaxAttempts: 3,
		}
		r := p.Retrier()
		failure := errors.New("connection refused")

		want := []time.Duration{
			10 * time.Millisecond,
			20 * time.Millisecond,
			40 * time.Millisecond,
		}
		for i, exp := range want {
			delay, retry := r.Next(failure)
			if !retry {
				t.Fatalf("Attempt %d: retry = false, want true", i)
			}
			if delay != exp {
				t.Errorf("Attempt %d: delay = %v, want %v", i, delay, exp)
			}
		}

		if _, retry := r.Next(failure); retry {
			t.Error("retry = true after MaxAttempts failures")
		}
	})

	t.Run("ResetAfterSuccess", func(t *testing.T) {
		p := RetryWithBackoff{
			Backoff:     BackoffConfig{Initial: 10 * time.Millisecond, Jitter: 0},
			MaxAttempts: 2,
		}
		r := p.Retrier()
		failure := errors.New("boom")

		r.Next(failure)
		r.Next(failure)
		r.Reset()

		delay, retry := r.Next(failure)
		if !retry {
			t.Fatal("retry = false after Reset")
		}
		if delay != 10*time.Millisecond {
			t.Errorf("delay = %v after Reset, want 10ms", delay)
		}
	})

	t.Run("Unbounded", func(t *testing.T) {
		r := RetryWithBackoff{Backoff: BackoffConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond}}.Retrier()
		for i := 0; i < 100; i++ {
			if _, retry := r.Next(errors.New("x")); !retry {
				t.Fatalf("Attempt %d: retry = false with MaxAttempts 0", i)
			}
		}
	})

	t.Run("IndependentRetriers", func(t *testing.T) {
		p := RetryWithBackoff{Backoff: BackoffConfig{Initial: 10 * time.Millisecond}, MaxAttempts: 1}
		a := p.Retrier()
		b := p.Retrier()

		a.Next(errors.New("x"))
		if _, retry := b.Next(errors.New("x")); !retry {
			t.Error("failures of one retrier leaked into another")
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateConnecting, "CONNECTING"},
		{StateStreaming, "STREAMING"},
		{StateDeciding, "DECIDING"},
		{StateTerminated, "TERMINATED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBackoffConfigNormalization(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial:    2 * time.Second,
		Max:        time.Second, // below Initial
		Multiplier: 0.5,         // not growing
		Jitter:     -1,
	})

	if got := b.Next(); got != 2*time.Second {
		t.Errorf("first delay = %v, want 2s", got)
	}
	if got := b.Current(); got != 2*time.Second {
		t.Errorf("Current() = %v, want capped 2s", got)
	}
}
