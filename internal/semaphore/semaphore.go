// Package semaphore provides the global concurrency gate shared by every
// operation issued through one Swarm instance. Worker, verifier, candidate,
// and judge executions all acquire a permit here, so nested compositions
// (a bestOf inside a map) still respect a single system-wide ceiling.
package semaphore

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the permit count used when no explicit capacity is given.
const DefaultCapacity = 4

// Semaphore is a fixed-capacity concurrency gate. Waiters are served in
// FIFO order. The zero value is not usable; construct with New.
type Semaphore struct {
	sem   *semaphore.Weighted
	cap   int
	inUse atomic.Int64
}

// New creates a Semaphore with the given capacity. A capacity below 1
// falls back to DefaultCapacity.
func New(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Semaphore{
		sem: semaphore.NewWeighted(int64(capacity)),
		cap: capacity,
	}
}

// Acquire blocks until a permit is available or ctx is done. On success
// the caller owns one permit and must call Release exactly once.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.inUse.Add(1)
	return nil
}

// Release returns a permit to the next waiter.
func (s *Semaphore) Release() {
	s.inUse.Add(-1)
	s.sem.Release(1)
}

// Use runs fn while holding one permit. The permit is released on every
// exit path, including a panic inside fn.
func (s *Semaphore) Use(ctx context.Context, fn func() error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer s.Release()
	return fn()
}

// Cap returns the configured permit capacity.
func (s *Semaphore) Cap() int {
	return s.cap
}

// InUse returns the number of permits currently held. Intended for
// instrumentation and tests; the value is immediately stale.
func (s *Semaphore) InUse() int {
	return int(s.inUse.Load())
}
