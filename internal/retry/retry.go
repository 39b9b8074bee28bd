// Package retry implements generic retry-with-backoff over status-bearing
// results. It never raises on behalf of the wrapped call: failures must be
// encoded into the result value, and the final (possibly still-failing)
// result is returned after attempts are exhausted.
package retry

import (
	"context"
	"math"
	"time"
)

// Defaults applied when a Policy field is unset.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
	DefaultMultiplier  = 2.0
)

// Policy configures retry behavior for results of type R.
type Policy[R any] struct {
	// MaxAttempts is the total number of calls, counting the first (>= 1).
	MaxAttempts int

	// Backoff is the delay before the second attempt.
	Backoff time.Duration

	// Multiplier scales the delay exponentially per attempt.
	Multiplier float64

	// RetryOn reports whether the result warrants another attempt.
	// Required; Do returns the first result unconditionally when nil.
	RetryOn func(R) bool

	// ErrorOf extracts a human-readable error message from a failing
	// result, passed to OnRetry. Optional.
	ErrorOf func(R) string

	// OnRetry is invoked before each re-attempt with the item index, the
	// attempt number that just failed (1-based), and the failure message.
	// Panics inside the callback are swallowed.
	OnRetry func(itemIndex, attempt int, errMsg string)
}

// withDefaults returns a copy of the policy with unset fields defaulted.
func (p Policy[R]) withDefaults() Policy[R] {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultMultiplier
	}
	return p
}

// Delay returns the sleep before the attempt following the given 1-based
// attempt number: Backoff * Multiplier^(attempt-1).
func (p Policy[R]) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	return time.Duration(float64(p.Backoff) * math.Pow(p.Multiplier, float64(attempt-1)))
}

// Do calls fn(attempt) with 1-based attempt numbers until RetryOn reports
// the result acceptable or MaxAttempts is reached. The delay between
// attempts respects ctx cancellation; on cancellation the last result is
// returned immediately.
func Do[R any](ctx context.Context, p Policy[R], itemIndex int, fn func(attempt int) R) R {
	p = p.withDefaults()

	var result R
	for attempt := 1; ; attempt++ {
		result = fn(attempt)

		if p.RetryOn == nil || !p.RetryOn(result) {
			return result
		}
		if attempt >= p.MaxAttempts {
			return result
		}

		notifyRetry(p, itemIndex, attempt, result)

		select {
		case <-ctx.Done():
			return result
		case <-time.After(p.Delay(attempt)):
		}
	}
}

// notifyRetry fires the OnRetry callback, isolating the retry loop from
// callback panics.
func notifyRetry[R any](p Policy[R], itemIndex, attempt int, result R) {
	if p.OnRetry == nil {
		return
	}
	defer func() { _ = recover() }()

	errMsg := ""
	if p.ErrorOf != nil {
		errMsg = p.ErrorOf(result)
	}
	p.OnRetry(itemIndex, attempt, errMsg)
}
