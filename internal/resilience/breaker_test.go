package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func succeeding() error { return nil }

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker("test", 10, 0.5, time.Minute)

	// 5 successes + 4 failures: window not full of enough failures yet.
	for i := 0; i < 5; i++ {
		_ = b.Execute(succeeding, nil)
	}
	for i := 0; i < 4; i++ {
		_ = b.Execute(failing, nil)
	}
	assert.Equal(t, StateClosed, b.State())

	// 10th call fails: 5/10 = 50% -> OPEN. Exactly one transition.
	_ = b.Execute(failing, nil)
	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(succeeding, nil)
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeUnavailable, ae.Code)
}

func TestBreakerStaysClosedUnderThreshold(t *testing.T) {
	b := NewBreaker("test", 10, 0.5, time.Minute)
	for i := 0; i < 10; i++ {
		if i%3 == 0 {
			_ = b.Execute(failing, nil) // 4 failures out of 10
		} else {
			_ = b.Execute(succeeding, nil)
		}
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	b := NewBreaker("test", 4, 0.5, 30*time.Second)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		_ = b.Execute(failing, nil)
	}
	require.Equal(t, StateOpen, b.State())

	// Before the wait elapses every call is rejected.
	now = now.Add(29 * time.Second)
	require.Error(t, b.Execute(succeeding, nil))

	// After the wait exactly one probe is admitted.
	now = now.Add(2 * time.Second)
	probeRan := 0
	err := b.Execute(func() error { probeRan++; return nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, probeRan)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := NewBreaker("test", 2, 0.5, 10*time.Second)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	_ = b.Execute(failing, nil)
	_ = b.Execute(failing, nil)
	require.Equal(t, StateOpen, b.State())

	now = now.Add(11 * time.Second)
	require.Error(t, b.Execute(failing, nil))
	assert.Equal(t, StateOpen, b.State())

	// The window resets on recovery, so one old failure cannot re-trip it.
	now = now.Add(11 * time.Second)
	require.NoError(t, b.Execute(succeeding, nil))
	assert.Equal(t, StateClosed, b.State())
	_ = b.Execute(failing, nil)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerFallbackWhileOpen(t *testing.T) {
	b := NewBreaker("test", 2, 0.5, time.Minute)
	_ = b.Execute(failing, nil)
	_ = b.Execute(failing, nil)
	require.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(succeeding, func(err error) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
