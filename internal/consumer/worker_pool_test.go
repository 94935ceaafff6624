package consumer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPoolRunsAllJobs(t *testing.T) {
	wp := NewWorkerPool(4)
	var done atomic.Int32

	for i := 0; i < 50; i++ {
		wp.Submit(func() { done.Add(1) })
	}
	wp.Stop()
	assert.Equal(t, int32(50), done.Load())
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	const workers = 3
	wp := NewWorkerPool(workers)

	var inFlight, peak atomic.Int32
	var mu sync.Mutex

	for i := 0; i < 20; i++ {
		wp.Submit(func() {
			n := inFlight.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		})
	}
	wp.Stop()
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestWorkerPoolStopIsIdempotent(t *testing.T) {
	wp := NewWorkerPool(2)
	wp.Submit(func() {})
	wp.Stop()
	wp.Stop()

	// Submissions after stop are dropped, not panics.
	wp.Submit(func() { t.Fatal("must not run after stop") })
}
