// Package jobs holds the job-aggregate commands and the cached read paths:
// keyword search (cache-aside, 60s class) and job detail (300s class) with a
// view counter, plus the deadline-expiration sweep.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/cache"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/contracts/event"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/postgres"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/outbox"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
)

const aggregateType = "job"

type Service struct {
	repo    *postgres.Repo
	cache   *cache.Layer
	breaker *resilience.Breaker  // named "database"
	search  *resilience.Bulkhead // bounds concurrent search loads

	now func() time.Time
}

func NewService(repo *postgres.Repo, cacheLayer *cache.Layer, breaker *resilience.Breaker, search *resilience.Bulkhead) *Service {
	return &Service{
		repo:    repo,
		cache:   cacheLayer,
		breaker: breaker,
		search:  search,
		now:     time.Now,
	}
}

type CreateInput struct {
	Title       string
	Description string
	Location    string
	Deadline    *time.Time
}

// Create inserts a DRAFT job and its JOB_CREATED event in one transaction.
func (s *Service) Create(ctx context.Context, employerID int64, in CreateInput) (*domain.Job, error) {
	now := s.now()
	job, err := domain.NewJob(employerID, in.Title, in.Description, in.Location, in.Deadline, now)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tr *postgres.TxRepo) error {
		if err := tr.InsertJob(ctx, job); err != nil {
			return err
		}
		return appendJobEvent(ctx, tr, event.TypeJobCreated, job, now)
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("jobs")
	log.Info().
		Int64("job_id", job.ID).
		Int64("employer_id", employerID).
		Msg("job created")
	return job, nil
}

type UpdateInput struct {
	Title       string
	Description string
	Location    string
	Deadline    *time.Time
}

// Update edits the job's content fields and emits JOB_UPDATED. The cached
// detail and search pages are evicted right after commit; the invalidation
// consumer repeats the eviction for replicas when the event lands.
func (s *Service) Update(ctx context.Context, employerID, jobID int64, in UpdateInput) (*domain.Job, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > 200 {
		return nil, domain.ErrValidationFields("invalid job", map[string]string{
			"title": "is required and must be <= 200 chars",
		})
	}

	now := s.now()
	var job *domain.Job

	err := s.inTx(ctx, func(tr *postgres.TxRepo) error {
		j, err := tr.GetJobForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if j.EmployerID != employerID {
			return domain.ErrForbidden("job belongs to another employer")
		}
		j.Title = title
		j.Description = strings.TrimSpace(in.Description)
		j.Location = strings.TrimSpace(in.Location)
		if in.Deadline != nil {
			u := in.Deadline.UTC()
			j.ApplicationDeadline = &u
		}
		j.UpdatedAt = now.UTC()
		if err := tr.UpdateJob(ctx, j); err != nil {
			return err
		}
		job = j
		return appendJobEvent(ctx, tr, event.TypeJobUpdated, j, now)
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDetail(ctx, job.ID)
	return job, nil
}

// ChangeStatus drives the job lifecycle. EXPIRED is rejected here; only the
// sweep may set it.
func (s *Service) ChangeStatus(ctx context.Context, employerID, jobID int64, to domain.JobStatus) (*domain.Job, error) {
	now := s.now()
	var job *domain.Job

	err := s.inTx(ctx, func(tr *postgres.TxRepo) error {
		j, err := tr.GetJobForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if j.EmployerID != employerID {
			return domain.ErrForbidden("job belongs to another employer")
		}
		if err := j.TransitionTo(to, now); err != nil {
			return err
		}
		if err := tr.UpdateJob(ctx, j); err != nil {
			return err
		}
		job = j
		return appendJobEvent(ctx, tr, event.TypeJobStatusChanged, j, now)
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDetail(ctx, job.ID)
	return job, nil
}

// Search is the hot read path: cache-aside keyed by the request fingerprint,
// with the primary-store query bounded by the search bulkhead.
func (s *Service) Search(ctx context.Context, f postgres.JobSearch) ([]*domain.Job, error) {
	key := cache.SearchKey(cache.SearchFingerprint{
		Keyword:  f.Keyword,
		Location: f.Location,
		Status:   f.Status,
		Sort:     f.Sort,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
	return cache.GetOrLoad(ctx, s.cache, "search", key, cache.SearchTTL, func(ctx context.Context) ([]*domain.Job, error) {
		var out []*domain.Job
		err := s.search.Execute(ctx, func() error {
			var loadErr error
			out, loadErr = s.repo.SearchJobs(ctx, f)
			return loadErr
		})
		return out, err
	})
}

// Detail returns one job, counting the view. The counter write is
// best-effort and keeps the read path available when the write side degrades.
func (s *Service) Detail(ctx context.Context, jobID int64) (*domain.Job, error) {
	if err := s.repo.IncrementJobViews(ctx, jobID); err != nil {
		log := logger.WithComponent("jobs")
		log.Warn().Err(err).Int64("job_id", jobID).Msg("view count update failed")
	}
	return cache.GetOrLoad(ctx, s.cache, "detail", cache.DetailKey(jobID), cache.DetailTTL, func(ctx context.Context) (*domain.Job, error) {
		return s.repo.GetJob(ctx, jobID)
	})
}

// ExpireOverdue is the sweep task body: ACTIVE jobs whose deadline passed
// before today move to EXPIRED, each with its JOB_STATUS_CHANGED event.
// Returns the number of jobs expired.
func (s *Service) ExpireOverdue(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 500
	}
	now := s.now()
	cutoff := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)

	candidates, err := s.repo.ListExpirableJobs(ctx, cutoff, batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range candidates {
		jobID := c.ID
		var didExpire bool
		err := s.inTx(ctx, func(tr *postgres.TxRepo) error {
			j, err := tr.GetJobForUpdate(ctx, jobID)
			if err != nil {
				return err
			}
			if err := j.Expire(now); err != nil {
				// Lost the race with a concurrent status change; skip.
				return nil
			}
			if err := tr.UpdateJob(ctx, j); err != nil {
				return err
			}
			didExpire = true
			return appendJobEvent(ctx, tr, event.TypeJobStatusChanged, j, now)
		})
		if err != nil {
			return expired, err
		}
		if didExpire {
			s.cache.InvalidateDetail(ctx, jobID)
			expired++
		}
	}

	if expired > 0 {
		log := logger.WithComponent("jobs")
		log.Info().Int("expired", expired).Msg("deadline sweep completed")
	}
	return expired, nil
}

func (s *Service) inTx(ctx context.Context, fn func(tr *postgres.TxRepo) error) error {
	var bizErr error
	err := s.breaker.Execute(func() error {
		txErr := s.repo.WithTx(ctx, fn)
		if txErr != nil && !domain.IsRetryable(txErr) {
			bizErr = txErr
			return nil
		}
		return txErr
	}, nil)
	if bizErr != nil {
		return bizErr
	}
	if err != nil {
		metrics.RecordDBFailed()
		return err
	}
	metrics.RecordDBSaved()
	return nil
}

func appendJobEvent(ctx context.Context, tr *postgres.TxRepo, eventType string, j *domain.Job, at time.Time) error {
	ev := event.NewJobEvent(eventType, j, at)
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return tr.AppendOutbox(ctx, outbox.Event{
		AggregateType: aggregateType,
		AggregateID:   j.ID,
		EventType:     eventType,
		Payload:       payload,
		Topic:         event.TopicJobLifecycle,
		PartitionKey:  ev.PartitionKey(),
		CreatedAt:     at.UTC(),
	})
}
