package pool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbkernel/ndbfs/internal/pool"
)

func TestBoundedGroupCapsConcurrency(t *testing.T) {
	g := pool.NewBoundedGroup(2)
	var inFlight, maxSeen int64
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		err := g.Go(context.Background(), func() {
			defer wg.Done()
			n := atomic.AddInt64(&inFlight, 1)
			for {
				max := atomic.LoadInt64(&maxSeen)
				if n <= max || atomic.CompareAndSwapInt64(&maxSeen, max, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		})
		require.NoError(t, err)
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&maxSeen), int64(2))
}

func TestTryGoFailsWhenAtCapacity(t *testing.T) {
	g := pool.NewBoundedGroup(1)
	release := make(chan struct{})
	started := make(chan struct{})
	ok := g.TryGo(func() {
		close(started)
		<-release
	})
	require.True(t, ok)
	<-started

	ok = g.TryGo(func() {})
	assert.False(t, ok, "TryGo should fail while the single slot is occupied")
	close(release)
}

func TestGoRespectsContextCancellation(t *testing.T) {
	g := pool.NewBoundedGroup(1)
	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, g.TryGo(func() {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Go(ctx, func() {})
	assert.Error(t, err)
	close(release)
}
