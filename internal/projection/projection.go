// Package projection holds the jobservice-side consumers that keep
// denormalized read models in line with the event stream: application
// counters on jobs and cache invalidation on job lifecycle changes.
package projection

import (
	"context"
	"strconv"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/bus"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/consumer"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/contracts/event"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/postgres"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
)

// Invalidator evicts cached reads touched by an aggregate change. Satisfied
// by the cache layer; an interface here keeps ownership one-directional.
type Invalidator interface {
	InvalidateDetail(ctx context.Context, jobID int64)
	InvalidateSearch(ctx context.Context)
}

type Projector struct {
	repo  *postgres.Repo
	cache Invalidator
}

func NewProjector(repo *postgres.Repo, cache Invalidator) *Projector {
	return &Projector{repo: repo, cache: cache}
}

// CounterBinding consumes application.created and bumps the job's
// application counter. Counter updates are idempotent per event via the
// runtime's dedup fence.
func (p *Projector) CounterBinding() consumer.Binding {
	return consumer.Binding{
		Topic:       event.TopicApplicationCreated,
		Group:       "job-projection",
		Channel:     "job-projection",
		Concurrency: 4,
		Identity:    applicationIdentity("job-projection"),
		Handle:      p.handleApplicationEvent,
	}
}

// InvalidationBinding consumes job.lifecycle and drops stale cached reads.
func (p *Projector) InvalidationBinding() consumer.Binding {
	return consumer.Binding{
		Topic:       event.TopicJobLifecycle,
		Group:       "cache-invalidation",
		Channel:     "cache-invalidation",
		Concurrency: 4,
		Identity: func(d bus.Delivery) (string, string, int64, error) {
			ev, err := event.DecodeJobEvent(d.Body)
			if err != nil {
				return "", "", 0, err
			}
			id := "cache-invalidation:" + ev.EventType + ":" + strconv.FormatInt(ev.JobID, 10) + ":" + strconv.FormatInt(ev.Timestamp, 10)
			return id, ev.EventType, ev.EmployerID, nil
		},
		Handle: p.handleJobEvent,
	}
}

func (p *Projector) handleApplicationEvent(ctx context.Context, body []byte) error {
	ev, err := event.DecodeApplicationEvent(body)
	if err != nil {
		return err
	}
	if ev.EventType != event.TypeApplicationCreated {
		return nil
	}
	if err := p.repo.IncrementApplicationCount(ctx, ev.JobID); err != nil {
		return domain.ErrTransient("increment application count", err)
	}
	p.cache.InvalidateDetail(ctx, ev.JobID)
	log := logger.WithComponent("projection")
	log.Debug().
		Int64("job_id", ev.JobID).
		Int64("application_id", ev.ApplicationID).
		Msg("application count incremented")
	return nil
}

func (p *Projector) handleJobEvent(ctx context.Context, body []byte) error {
	ev, err := event.DecodeJobEvent(body)
	if err != nil {
		return err
	}
	p.cache.InvalidateDetail(ctx, ev.JobID)
	log := logger.WithComponent("projection")
	log.Debug().
		Int64("job_id", ev.JobID).
		Str("event_type", ev.EventType).
		Msg("cached reads invalidated")
	return nil
}

func applicationIdentity(channel string) func(bus.Delivery) (string, string, int64, error) {
	return func(d bus.Delivery) (string, string, int64, error) {
		ev, err := event.DecodeApplicationEvent(d.Body)
		if err != nil {
			return "", "", 0, err
		}
		id := channel + ":" + ev.EventType + ":" + strconv.FormatInt(ev.ApplicationID, 10)
		return id, ev.EventType, ev.UserID, nil
	}
}
