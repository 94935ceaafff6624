package resilience

import (
	"context"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
)

// Bulkhead is a named bounded pool. Calls past maxConcurrent wait up to
// maxWait for a slot, then fail fast with BULKHEAD_FULL. Pools are sized
// below the primary store's connection pool so the handler layer cannot
// queue more work than the store can absorb.
type Bulkhead struct {
	name    string
	slots   chan struct{}
	maxWait time.Duration
}

func NewBulkhead(name string, maxConcurrent int, maxWait time.Duration) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Bulkhead{
		name:    name,
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Execute runs fn inside the pool or fails fast when saturated.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if b.maxWait <= 0 {
		select {
		case b.slots <- struct{}{}:
		default:
			metrics.RecordBulkheadRejected(b.name)
			return domain.ErrUnavailable("BULKHEAD_FULL: " + b.name)
		}
	} else {
		timer := time.NewTimer(b.maxWait)
		defer timer.Stop()
		select {
		case b.slots <- struct{}{}:
		case <-timer.C:
			metrics.RecordBulkheadRejected(b.name)
			return domain.ErrUnavailable("BULKHEAD_FULL: " + b.name)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer func() { <-b.slots }()

	return fn()
}

func (b *Bulkhead) Name() string { return b.name }
