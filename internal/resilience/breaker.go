package resilience

import (
	"sync"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
)

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker is a sliding-window circuit breaker for one named dependency.
// CLOSED -> OPEN when the failure rate over the last windowSize calls
// reaches the threshold; OPEN -> HALF_OPEN after waitOpen; a single probe
// call decides HALF_OPEN -> CLOSED or back to OPEN.
type Breaker struct {
	name        string
	windowSize  int
	failureRate float64 // e.g. 0.5
	waitOpen    time.Duration
	now         func() time.Time

	mu            sync.Mutex
	state         BreakerState
	window        []bool // true = failure, ring buffer
	windowPos     int
	windowFill    int
	openedAt      time.Time
	probeInFlight bool
}

func NewBreaker(name string, windowSize int, failureRate float64, waitOpen time.Duration) *Breaker {
	if windowSize <= 0 {
		windowSize = 10
	}
	if failureRate <= 0 {
		failureRate = 0.5
	}
	return &Breaker{
		name:        name,
		windowSize:  windowSize,
		failureRate: failureRate,
		waitOpen:    waitOpen,
		now:         time.Now,
		window:      make([]bool, windowSize),
	}
}

// Execute runs fn under the breaker, invoking fallback (when non-nil)
// instead of fn while the circuit is open.
func (b *Breaker) Execute(fn func() error, fallback func(err error) error) error {
	if err := b.allow(); err != nil {
		if fallback != nil {
			return fallback(err)
		}
		return err
	}

	err := fn()
	b.record(err)
	if err != nil && fallback != nil && b.State() == StateOpen {
		return fallback(err)
	}
	return err
}

// allow admits the call or returns SERVICE_UNAVAILABLE.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.waitOpen {
			b.setState(StateHalfOpen)
			b.probeInFlight = true
			return nil
		}
		return domain.ErrUnavailable(b.name + " circuit open")
	case StateHalfOpen:
		if b.probeInFlight {
			return domain.ErrUnavailable(b.name + " circuit half-open, probe in flight")
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.probeInFlight = false
		if err != nil {
			b.setState(StateOpen)
			b.openedAt = b.now()
			return
		}
		b.resetWindow()
		b.setState(StateClosed)
	case StateClosed:
		b.window[b.windowPos] = err != nil
		b.windowPos = (b.windowPos + 1) % b.windowSize
		if b.windowFill < b.windowSize {
			b.windowFill++
		}
		if b.windowFill == b.windowSize && b.currentFailureRate() >= b.failureRate {
			b.setState(StateOpen)
			b.openedAt = b.now()
		}
	}
}

func (b *Breaker) currentFailureRate() float64 {
	failures := 0
	for _, f := range b.window[:b.windowFill] {
		if f {
			failures++
		}
	}
	return float64(failures) / float64(b.windowFill)
}

func (b *Breaker) resetWindow() {
	for i := range b.window {
		b.window[i] = false
	}
	b.windowPos = 0
	b.windowFill = 0
}

func (b *Breaker) setState(s BreakerState) {
	b.state = s
	metrics.SetBreakerState(b.name, int(s))
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Name() string { return b.name }
