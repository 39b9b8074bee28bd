package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	ok  bool
	err string
}

func failing(o outcome) bool { return !o.ok }

func fastPolicy() Policy[outcome] {
	return Policy[outcome]{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		Multiplier:  1,
		RetryOn:     failing,
		ErrorOf:     func(o outcome) string { return o.err },
	}
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	calls := 0
	result := Do(context.Background(), fastPolicy(), 0, func(attempt int) outcome {
		calls++
		assert.Equal(t, calls, attempt)
		return outcome{ok: true}
	})

	assert.True(t, result.ok)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result := Do(context.Background(), fastPolicy(), 0, func(attempt int) outcome {
		calls++
		return outcome{ok: attempt == 3}
	})

	assert.True(t, result.ok)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	result := Do(context.Background(), fastPolicy(), 0, func(int) outcome {
		calls++
		return outcome{err: "still broken"}
	})

	assert.False(t, result.ok)
	assert.Equal(t, "still broken", result.err)
	assert.Equal(t, 3, calls)
}

func TestOnRetryFiresAttemptsMinusOneTimes(t *testing.T) {
	type retryCall struct {
		index, attempt int
		errMsg         string
	}
	var seen []retryCall

	p := fastPolicy()
	p.OnRetry = func(itemIndex, attempt int, errMsg string) {
		seen = append(seen, retryCall{itemIndex, attempt, errMsg})
	}

	Do(context.Background(), p, 7, func(int) outcome {
		return outcome{err: "nope"}
	})

	require.Len(t, seen, 2)
	assert.Equal(t, retryCall{7, 1, "nope"}, seen[0])
	assert.Equal(t, retryCall{7, 2, "nope"}, seen[1])
}

func TestOnRetryPanicSwallowed(t *testing.T) {
	p := fastPolicy()
	p.OnRetry = func(int, int, string) { panic("observer bug") }

	calls := 0
	assert.NotPanics(t, func() {
		Do(context.Background(), p, 0, func(int) outcome {
			calls++
			return outcome{}
		})
	})
	assert.Equal(t, 3, calls, "retries continue despite panicking callback")
}

func TestNilRetryOnNeverRetries(t *testing.T) {
	calls := 0
	Do(context.Background(), Policy[outcome]{MaxAttempts: 5}, 0, func(int) outcome {
		calls++
		return outcome{err: "would retry"}
	})
	assert.Equal(t, 1, calls)
}

func TestContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := fastPolicy()
	p.Backoff = time.Hour // would hang without cancellation

	calls := 0
	done := make(chan outcome, 1)
	go func() {
		done <- Do(ctx, p, 0, func(int) outcome {
			calls++
			return outcome{err: "fail"}
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		assert.False(t, result.ok)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestDelaySchedule(t *testing.T) {
	p := Policy[outcome]{Backoff: 100 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
}

func TestDefaults(t *testing.T) {
	p := Policy[outcome]{}.withDefaults()

	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultBackoff, p.Backoff)
	assert.Equal(t, DefaultMultiplier, p.Multiplier)
}
