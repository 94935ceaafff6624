package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

func TestBulkheadSaturation(t *testing.T) {
	const n = 4
	b := NewBulkhead("test", n, 0)

	started := make(chan struct{})
	release := make(chan struct{})
	var full atomic.Int32
	var ok atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func() error {
				started <- struct{}{}
				<-release
				return nil
			})
			ok.Add(1)
		}()
	}
	for i := 0; i < n; i++ {
		<-started
	}

	// Pool is full and waits are disabled: the n+1th call fails fast.
	err := b.Execute(context.Background(), func() error { return nil })
	require.Error(t, err)
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeUnavailable, ae.Code)
	assert.Contains(t, ae.Message, "BULKHEAD_FULL")
	full.Add(1)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(n), ok.Load())
	assert.Equal(t, int32(1), full.Load())
}

func TestBulkheadWaitsForSlot(t *testing.T) {
	b := NewBulkhead("test", 1, 500*time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	// The slot frees within the max wait, so this call succeeds.
	err := b.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
}

func TestBulkheadContextCanceled(t *testing.T) {
	b := NewBulkhead("test", 1, time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := b.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
