package connection

import (
	"time"
)

// State is the lifecycle state of a channel reader.
type State uint8

const (
	// StateConnecting indicates the reader is opening a long poll.
	StateConnecting State = iota

	// StateStreaming indicates the reader is consuming a response body.
	StateStreaming

	// StateDeciding indicates the body ended and the reader is choosing
	// between reconnecting and terminating.
	StateDeciding

	// StateTerminated indicates the reader has exited and cleaned up.
	StateTerminated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateDeciding:
		return "DECIDING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// FailurePolicy decides what a reader does when opening a long poll fails.
// Each reader obtains its own Retrier so that retry state is not shared.
type FailurePolicy interface {
	Retrier() Retrier
}

// Retrier tracks consecutive connect failures of one reader.
type Retrier interface {
	// Next is called after a failed attempt. It returns the delay before the
	// next attempt, or false to terminate the reader.
	Next(err error) (time.Duration, bool)

	// Reset is called after a successful attempt.
	Reset()
}

// Terminate is the default policy: the first connect failure terminates the
// reader.
var Terminate FailurePolicy = terminatePolicy{}

type terminatePolicy struct{}

func (terminatePolicy) Retrier() Retrier                 { return terminatePolicy{} }
func (terminatePolicy) Next(error) (time.Duration, bool) { return 0, false }
func (terminatePolicy) Reset()                           {}

// RetryWithBackoff retries failed connects with exponential backoff.
type RetryWithBackoff struct {
	// Backoff configures the delays. Zero values select the defaults.
	Backoff BackoffConfig

	// MaxAttempts bounds the retries after consecutive failures; the
	// reader gives up on failure MaxAttempts+1. Zero means retry forever.
	MaxAttempts int
}

// Retrier implements FailurePolicy.
func (p RetryWithBackoff) Retrier() Retrier {
	return &backoffRetrier{
		backoff:     NewBackoffWithConfig(p.Backoff),
		maxAttempts: p.MaxAttempts,
	}
}

type backoffRetrier struct {
	backoff     *Backoff
	maxAttempts int
}

func (r *backoffRetrier) Next(error) (time.Duration, bool) {
	if r.maxAttempts > 0 && r.backoff.Attempts() >= r.maxAttempts {
		return 0, false
	}
	return r.backoff.Next(), true
}

func (r *backoffRetrier) Reset() {
	r.backoff.Reset()
}

// Compile-time interface satisfaction checks.
var (
	_ FailurePolicy = terminatePolicy{}
	_ FailurePolicy = RetryWithBackoff{}
	_ Retrier       = (*backoffRetrier)(nil)
)
