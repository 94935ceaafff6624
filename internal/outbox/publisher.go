package outbox

import (
	"context"
	"math/rand"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/bus"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
)

const (
	DefaultInterval    = 1 * time.Second
	DefaultBatchSize   = 100
	DefaultMaxAttempts = 10
)

// Publisher polls the store on a fixed delay and ships unpublished events to
// the bus in createdAt order. One publisher per process; the selection query
// is idempotent across retries, so a crash between bus accept and row update
// republishes (consumers dedupe).
type Publisher struct {
	store Store
	pub   bus.Publisher

	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewPublisher(store Store, pub bus.Publisher, interval time.Duration, batchSize, maxAttempts int) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Publisher{
		store:       store,
		pub:         pub,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Start runs the polling loop until ctx is canceled.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		log := logger.WithComponent("outbox_publisher")

		// Start jitter so multiple instances do not tick in lockstep.
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(rand.Intn(1000)) * time.Millisecond):
		}

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var lastErr string
		var lastAt time.Time

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				if err := p.RunOnce(ctx); err != nil {
					// DB down: the pass is a no-op; don't spam the log.
					if err.Error() != lastErr || time.Since(lastAt) > 10*time.Second {
						log.Warn().Err(err).Msg("outbox pass failed")
						lastErr = err.Error()
						lastAt = time.Now()
					}
				} else {
					lastErr = ""
				}
			}
		}
	}()
}

// RunOnce executes a single logical pass.
func (p *Publisher) RunOnce(ctx context.Context) error {
	log := logger.WithComponent("outbox_publisher")

	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	events, err := p.store.FetchUnpublished(fetchCtx, p.batchSize, p.maxAttempts)
	cancel()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	var published, failed, deadLettered int

	// Whole-batch createdAt order keeps per-(topic, partitionKey) order:
	// createdAt increases monotonically per process, and the bus preserves
	// order once records are accepted.
	for _, ev := range events {
		pubCtx, cancelPub := context.WithTimeout(ctx, 5*time.Second)
		err := p.pub.Publish(pubCtx, ev.Topic, ev.PartitionKey, ev.Payload)
		cancelPub()

		resCtx, cancelRes := context.WithTimeout(ctx, 3*time.Second)
		if err != nil {
			failed++
			metrics.RecordOutboxPublishFailed()
			if incErr := p.store.IncrementRetry(resCtx, ev.ID); incErr != nil {
				log.Error().Err(incErr).Int64("event_id", ev.ID).Msg("retry increment failed")
			}
			if ev.RetryCount+1 >= p.maxAttempts {
				deadLettered++
				metrics.RecordOutboxDeadLetter()
				log.Error().
					Int64("event_id", ev.ID).
					Str("topic", ev.Topic).
					Str("event_type", ev.EventType).
					Int("attempts", ev.RetryCount+1).
					Msg("outbox event dead-lettered")
			} else {
				log.Warn().
					Err(err).
					Int64("event_id", ev.ID).
					Str("topic", ev.Topic).
					Int("attempt", ev.RetryCount+1).
					Msg("outbox publish failed")
			}
			cancelRes()
			continue
		}

		if markErr := p.store.MarkPublished(resCtx, ev.ID, time.Now().UTC()); markErr != nil {
			// Bus accepted but the row update was lost: the next pass
			// republishes and downstream dedup absorbs it.
			log.Error().Err(markErr).Int64("event_id", ev.ID).Msg("mark published failed")
		}
		cancelRes()

		published++
		metrics.RecordOutboxPublished()
	}

	log.Debug().
		Int("published", published).
		Int("failed", failed).
		Int("dead_lettered", deadLettered).
		Msg("outbox pass complete")
	return nil
}
