// Package pool implements BoundedGroup, the admission gate that
// bounds concurrency in the pool-of-unbound-workers mode (spec §4.7,
// §11 domain stack). It is the Go-idiomatic analogue of a
// fixed-size thread set pulling from a shared channel: instead of
// pre-spawning N OS threads, it admits at most N concurrent task
// goroutines and lets the Go scheduler multiplex them onto threads.
package pool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// BoundedGroup runs tasks with a bounded number of concurrent
// in-flight goroutines.
type BoundedGroup struct {
	sem *semaphore.Weighted
}

// NewBoundedGroup returns a BoundedGroup admitting at most capacity
// concurrent tasks.
func NewBoundedGroup(capacity int) *BoundedGroup {
	return &BoundedGroup{sem: semaphore.NewWeighted(int64(capacity))}
}

// Go blocks until a slot is available (or ctx is done), then runs fn
// in a new goroutine, releasing the slot when fn returns.
func (g *BoundedGroup) Go(ctx context.Context, fn func()) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer g.sem.Release(1)
		fn()
	}()
	return nil
}

// TryGo attempts to run fn without blocking, returning false if the
// group is at capacity.
func (g *BoundedGroup) TryGo(fn func()) bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	go func() {
		defer g.sem.Release(1)
		fn()
	}()
	return true
}
