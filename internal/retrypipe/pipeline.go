// Package retrypipe consumes the retry topic serially, honors each
// envelope's scheduled delay, and re-invokes the owning channel handler.
// Exhausted records are counted as dead letters and dropped.
package retrypipe

import (
	"context"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/bus"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/contracts/event"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
)

const group = "retry-pipeline"

// Reinvoker re-runs the channel handler for a rescheduled record. It routes
// the next attempt itself when the handler fails recoverably.
type Reinvoker interface {
	Reinvoke(ctx context.Context, channel string, original []byte, userID int64, attempt int) error
}

type Pipeline struct {
	bus     bus.Bus
	invoker Reinvoker
	cfg     Config
}

func NewPipeline(b bus.Bus, invoker Reinvoker, cfg Config) *Pipeline {
	if cfg.MaxAttempts == 0 {
		cfg = DefaultConfig()
	}
	return &Pipeline{bus: b, invoker: invoker, cfg: cfg}
}

// Start subscribes with concurrency 1. Serial processing keeps one slow
// downstream from multiplying in-flight retries.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.bus.Subscribe(ctx, event.TopicNotificationRetry, group, p.handle, 1)
}

func (p *Pipeline) handle(ctx context.Context, d bus.Delivery) error {
	log := logger.WithComponent("retry_pipeline")

	env, err := event.DecodeRetryEnvelope(d.Body)
	if err != nil {
		log.Error().Err(err).Str("transport_id", d.TransportID).Msg("malformed retry envelope dropped")
		metrics.RecordDeadLetter("unknown", "malformed")
		return nil
	}

	if env.Attempt >= p.cfg.MaxAttempts {
		log.Error().
			Str("channel", env.Channel).
			Int("attempt", env.Attempt).
			Str("reason", env.Reason).
			Msg("retries exhausted, dead-lettering")
		metrics.RecordDeadLetter(env.Channel, "retries_exhausted")
		return nil
	}

	delay := time.Duration(env.DelayMillis) * time.Millisecond
	if delay <= 0 {
		delay = p.cfg.Delay(env.Attempt)
	}
	select {
	case <-ctx.Done():
		// Shutdown mid-wait: leave the record unacked for redelivery.
		return ctx.Err()
	case <-time.After(delay):
	}

	if err := p.invoker.Reinvoke(ctx, env.Channel, env.Original, env.UserID, env.Attempt); err != nil {
		metrics.RecordRetryFailure(env.Channel)
		log.Warn().Err(err).
			Str("channel", env.Channel).
			Int("attempt", env.Attempt).
			Msg("retry attempt failed")
		return nil
	}

	metrics.RecordRetrySuccess(env.Channel)
	log.Info().
		Str("channel", env.Channel).
		Int("attempt", env.Attempt).
		Msg("retry attempt succeeded")
	return nil
}
