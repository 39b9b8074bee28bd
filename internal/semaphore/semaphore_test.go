package semaphore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Cap())
	assert.Equal(t, DefaultCapacity, New(-3).Cap())
	assert.Equal(t, 7, New(7).Cap())
}

func TestUseReleasesOnError(t *testing.T) {
	s := New(1)

	wantErr := assert.AnError
	err := s.Use(context.Background(), func() error { return wantErr })
	assert.Equal(t, wantErr, err)

	// Permit must be available again
	require.NoError(t, s.Acquire(context.Background()))
	s.Release()
}

func TestUseReleasesOnPanic(t *testing.T) {
	s := New(1)

	assert.Panics(t, func() {
		_ = s.Use(context.Background(), func() error { panic("boom") })
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Acquire(ctx), "permit leaked after panic")
	s.Release()
}

func TestAcquireRespectsContext(t *testing.T) {
	s := New(1)
	require.NoError(t, s.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s.Release()
}

func TestConcurrencyBound(t *testing.T) {
	const capacity = 2
	const workers = 5

	s := New(capacity)

	var current, peak atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Use(context.Background(), func() error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(30 * time.Millisecond)
				current.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int64(capacity))
}

func TestInUseTracking(t *testing.T) {
	s := New(3)

	require.NoError(t, s.Acquire(context.Background()))
	require.NoError(t, s.Acquire(context.Background()))
	assert.Equal(t, 2, s.InUse())

	s.Release()
	assert.Equal(t, 1, s.InUse())
	s.Release()
	assert.Equal(t, 0, s.InUse())
}
