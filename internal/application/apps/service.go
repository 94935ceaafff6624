// Package apps holds the application-aggregate commands: submit, review
// transitions, withdrawal and reads. Every state change commits its event
// through the outbox in the same transaction.
package apps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/contracts/event"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/postgres"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/outbox"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
)

const aggregateType = "application"

type Service struct {
	repo    *postgres.Repo
	breaker *resilience.Breaker // named "database"
	limiter *resilience.RateLimiter

	applyLimit  int
	applyWindow time.Duration

	now func() time.Time
}

func NewService(repo *postgres.Repo, breaker *resilience.Breaker, limiter *resilience.RateLimiter, applyLimit int, applyWindow time.Duration) *Service {
	if applyLimit <= 0 {
		applyLimit = 5
	}
	if applyWindow <= 0 {
		applyWindow = time.Minute
	}
	return &Service{
		repo:        repo,
		breaker:     breaker,
		limiter:     limiter,
		applyLimit:  applyLimit,
		applyWindow: applyWindow,
		now:         time.Now,
	}
}

type CreateInput struct {
	JobID       int64
	CoverLetter string
	ResumeURL   string
}

// Create submits an application. The insert and its APPLICATION_CREATED
// outbox row share one transaction; a duplicate (user, job) pair surfaces as
// CONFLICT before any event exists.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*domain.Application, error) {
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, fmt.Sprintf("apply:%d", userID), s.applyLimit, s.applyWindow); err != nil {
			return nil, err
		}
	}

	now := s.now()
	app, err := domain.NewApplication(userID, in.JobID, in.CoverLetter, in.ResumeURL, now)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tr *postgres.TxRepo) error {
		job, err := tr.GetJobForUpdate(ctx, in.JobID)
		if err != nil {
			return err
		}
		if !job.AcceptsApplications(now) {
			return domain.ErrConflict("job is not accepting applications")
		}
		if err := tr.InsertApplication(ctx, app); err != nil {
			return err
		}
		return appendApplicationEvent(ctx, tr, event.TypeApplicationCreated, app, now)
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("apps")
	log.Info().
		Int64("application_id", app.ID).
		Int64("job_id", app.JobID).
		Int64("user_id", app.UserID).
		Msg("application submitted")
	return app, nil
}

// ChangeStatus is the employer-side review transition. Only the employer who
// owns the job may move the application.
func (s *Service) ChangeStatus(ctx context.Context, employerID, applicationID int64, to domain.ApplicationStatus) (*domain.Application, error) {
	now := s.now()
	var app *domain.Application

	err := s.inTx(ctx, func(tr *postgres.TxRepo) error {
		a, err := tr.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		job, err := tr.GetJobForUpdate(ctx, a.JobID)
		if err != nil {
			return err
		}
		if job.EmployerID != employerID {
			return domain.ErrForbidden("application belongs to another employer's job")
		}
		if err := a.TransitionTo(to, now); err != nil {
			return err
		}
		if err := tr.UpdateApplication(ctx, a); err != nil {
			return err
		}
		app = a
		return appendApplicationEvent(ctx, tr, event.TypeApplicationStatusChanged, a, now)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Withdraw is the applicant-side terminal move.
func (s *Service) Withdraw(ctx context.Context, userID, applicationID int64) (*domain.Application, error) {
	now := s.now()
	var app *domain.Application

	err := s.inTx(ctx, func(tr *postgres.TxRepo) error {
		a, err := tr.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if a.UserID != userID {
			return domain.ErrForbidden("application belongs to another user")
		}
		if err := a.Withdraw(now); err != nil {
			return err
		}
		if err := tr.UpdateApplication(ctx, a); err != nil {
			return err
		}
		app = a
		return appendApplicationEvent(ctx, tr, event.TypeApplicationWithdrawn, a, now)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Get returns one application to its owner or to the job's employer.
func (s *Service) Get(ctx context.Context, principalID, applicationID int64) (*domain.Application, error) {
	a, err := s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if a.UserID == principalID {
		return a, nil
	}
	job, err := s.repo.GetJob(ctx, a.JobID)
	if err != nil {
		return nil, err
	}
	if job.EmployerID != principalID {
		return nil, domain.ErrForbidden("not your application")
	}
	return a, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]*domain.Application, error) {
	return s.repo.ListApplicationsByUser(ctx, userID, page, pageSize)
}

// inTx runs the command transaction behind the database breaker. Business
// failures (validation, conflicts, ownership) bypass the breaker's window so
// only infrastructure faults can open the circuit. The pipeline-health
// database counters move here, once per command.
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

func appendApplicationEvent(ctx context.Context, tr *postgres.TxRepo, eventType string, a *domain.Application, at time.Time) error {
	ev := event.NewApplicationEvent(eventType, a, at)
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return tr.AppendOutbox(ctx, outbox.Event{
		AggregateType: aggregateType,
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       payload,
		Topic:         event.TopicApplicationCreated,
		PartitionKey:  ev.PartitionKey(),
		CreatedAt:     at.UTC(),
	})
}
