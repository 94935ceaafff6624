// Package consumer is the delivery-side runtime: it fences duplicate
// records, times handlers, and routes retryable failures to the retry topic
// so the original record can always be acked.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/bus"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/contracts/event"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/idempotency"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/retrypipe"
)

// Binding wires one (topic, group) subscription to a channel handler.
type Binding struct {
	Topic       string
	Group       string
	Channel     string
	Concurrency int

	// Identity extracts the dedup identity and retry routing fields from a
	// raw record. A permanent error drops the record as poison.
	Identity func(d bus.Delivery) (eventID string, eventType string, userID int64, err error)

	// Handle performs the channel's effect for one record body.
	Handle func(ctx context.Context, body []byte) error
}

// Runtime subscribes bindings on the bus and owns the shared failure router.
type Runtime struct {
	bus   bus.Bus
	idem  *idempotency.Store
	retry retrypipe.Config

	mu       sync.RWMutex
	bindings map[string]Binding // by channel
}

func NewRuntime(b bus.Bus, idem *idempotency.Store, retry retrypipe.Config) *Runtime {
	if retry.MaxAttempts == 0 {
		retry = retrypipe.DefaultConfig()
	}
	return &Runtime{
		bus:      b,
		idem:     idem,
		retry:    retry,
		bindings: make(map[string]Binding),
	}
}

func (r *Runtime) RetryConfig() retrypipe.Config { return r.retry }

// Subscribe registers the binding and starts consuming its topic.
func (r *Runtime) Subscribe(ctx context.Context, b Binding) error {
	if b.Topic == "" || b.Group == "" || b.Channel == "" || b.Handle == nil {
		return fmt.Errorf("consumer: binding for channel %q is incomplete", b.Channel)
	}
	if b.Concurrency <= 0 {
		b.Concurrency = 1
	}
	r.mu.Lock()
	r.bindings[b.Channel] = b
	r.mu.Unlock()
	return r.bus.Subscribe(ctx, b.Topic, b.Group, r.wrap(b), b.Concurrency)
}

// wrap builds the per-record pipeline: dedup fence, handler, failure routing.
// It returns a non-nil error only when the idempotency store is unreachable,
// which is the one case where transport redelivery is the right recovery.
func (r *Runtime) wrap(b Binding) bus.Handler {
	log := logger.WithComponent("consumer").With().
		Str("channel", b.Channel).
		Str("topic", b.Topic).
		Logger()

	return func(ctx context.Context, d bus.Delivery) error {
		metrics.RecordMessageConsumed(b.Topic, b.Group)

		eventID, eventType, userID, err := b.Identity(d)
		if err != nil {
			log.Error().Err(err).Str("transport_id", d.TransportID).Msg("poison record dropped")
			metrics.RecordDeadLetter(b.Channel, "malformed")
			return nil
		}
		if eventID == "" {
			// Producer omitted identity fields; fall back to the transport id
			// so at least exact redeliveries are fenced.
			eventID = b.Topic + ":" + d.TransportID
		}

		first, err := r.idem.Acquire(ctx, eventID)
		if err != nil {
			log.Error().Err(err).Str("event_id", eventID).Msg("idempotency store unreachable")
			return err
		}
		if !first {
			metrics.RecordIdempotencyHit()
			log.Debug().Str("event_id", eventID).Msg("duplicate record skipped")
			return nil
		}
		metrics.RecordIdempotencyMiss()

		start := time.Now()
		handleErr := b.Handle(ctx, d.Body)
		metrics.RecordHandlerDuration(b.Channel, eventType, time.Since(start))

		if handleErr == nil {
			return nil
		}

		if !domain.IsRetryable(handleErr) {
			log.Error().Err(handleErr).Str("event_id", eventID).Msg("permanent failure, dead-lettering")
			metrics.RecordDeadLetter(b.Channel, "permanent")
			return nil
		}

		// Recoverable failure: free the fence so the rescheduled attempt can
		// run, then hand the record to the retry topic.
		if relErr := r.idem.Release(ctx, eventID); relErr != nil {
			log.Warn().Err(relErr).Str("event_id", eventID).Msg("idempotency release failed")
		}
		if routeErr := r.RouteFailure(ctx, b.Channel, d.Body, userID, 1, handleErr); routeErr != nil {
			log.Error().Err(routeErr).Str("event_id", eventID).Msg("retry scheduling failed")
			return routeErr
		}
		return nil
	}
}

// RouteFailure publishes a retry envelope: the original event fields with
// the attempt metadata merged in, keyed by user so one user's retries stay
// ordered.
func (r *Runtime) RouteFailure(ctx context.Context, channel string, original []byte, userID int64, attempt int, cause error) error {
	delay := r.retry.Delay(attempt)
	env := event.RetryEnvelope{
		Original:    original,
		Attempt:     attempt,
		Channel:     channel,
		DelayMillis: delay.Milliseconds(),
		Reason:      cause.Error(),
		ScheduledAt: time.Now().UnixMilli(),
		UserID:      userID,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("consumer: encode retry envelope: %w", err)
	}
	if err := r.bus.Publish(ctx, event.TopicNotificationRetry, env.PartitionKey(), body); err != nil {
		return fmt.Errorf("consumer: publish retry envelope: %w", err)
	}
	metrics.RecordRetryScheduled(channel)
	log := logger.WithComponent("consumer")
	log.Info().
		Str("channel", channel).
		Int("attempt", attempt).
		Dur("delay", delay).
		Str("reason", cause.Error()).
		Msg("retry scheduled")
	return nil
}

// Reinvoke runs the channel handler for a rescheduled record. A recoverable
// failure routes the next attempt; the retry pipeline itself never
// republishes.
func (r *Runtime) Reinvoke(ctx context.Context, channel string, original []byte, userID int64, attempt int) error {
	r.mu.RLock()
	b, ok := r.bindings[channel]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrPermanent("no handler registered for channel "+channel, nil)
	}

	start := time.Now()
	err := b.Handle(ctx, original)
	metrics.RecordHandlerDuration(channel, "retry", time.Since(start))
	if err == nil {
		return nil
	}
	if !domain.IsRetryable(err) {
		metrics.RecordDeadLetter(channel, "permanent")
		return err
	}
	if routeErr := r.RouteFailure(ctx, channel, original, userID, attempt+1, err); routeErr != nil {
		return routeErr
	}
	return err
}
