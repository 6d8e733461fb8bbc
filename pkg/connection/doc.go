// Package connection provides lifecycle primitives for channel readers.
//
// This package handles:
//   - The reader state machine labels (connecting, streaming, deciding,
//     terminated)
//   - The policy applied when opening a long poll fails
//   - Exponential backoff with jitter for policies that retry
//
// # Failure Policy
//
// By default a reader whose connect attempt fails terminates immediately;
// callers observe this as their delivery endpoint ending and may register
// again. RetryWithBackoff swaps this for bounded retries:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Give up after MaxAttempts consecutive failures (0 = never)
//  5. Reset to 1s after a successful connect
//
// # Jitter
//
// To prevent thundering herd when many clients reconnect to one server:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
