package apps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/postgres"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *resilience.Breaker) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	breaker := resilience.NewBreaker("database", 2, 0.5, 30*time.Second)
	svc := NewService(postgres.New(db), breaker, nil, 5, time.Minute)
	return svc, mock, breaker
}

func jobColumns() []string {
	return []string{"id", "employer_id", "title", "description", "location", "status",
		"application_deadline", "view_count", "application_count", "created_at", "updated_at"}
}

func jobRow(id, employerID int64, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(jobColumns()).
		AddRow(id, employerID, "Backend engineer", "Go services", "Remote", status,
			nil, int64(0), int64(0), now, now)
}

func appRow(id, userID, jobID int64, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "user_id", "job_id", "status", "cover_letter", "resume_url", "notes", "created_at", "updated_at"}).
		AddRow(id, userID, jobID, status, "", "", "", now, now)
}

func TestCreateCommitsApplicationWithEvent(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM jobs WHERE id`).WithArgs(int64(100)).
		WillReturnRows(jobRow(100, 3, "ACTIVE"))
	mock.ExpectQuery(`INSERT INTO applications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(`INSERT INTO outbox_events`).
		WithArgs("application", int64(42), "APPLICATION_CREATED", sqlmock.AnyArg(),
			"application.created", "100", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app, err := svc.Create(context.Background(), 7, CreateInput{JobID: 100, CoverLetter: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), app.ID)
	assert.Equal(t, domain.StatusSubmitted, app.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsClosedJob(t *testing.T) {
	svc, mock, breaker := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM jobs WHERE id`).WithArgs(int64(100)).
		WillReturnRows(jobRow(100, 3, "PAUSED"))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), 7, CreateInput{JobID: 100})
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeConflict, ae.Code)
	assert.Equal(t, resilience.StateClosed, breaker.State(), "business rejection must not count against the circuit")
}

func TestCreateUnknownJob(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM jobs WHERE id`).WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows(jobColumns()))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), 7, CreateInput{JobID: 999})
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeNotFound, ae.Code)
}

func TestCreateValidatesBeforeTouchingStore(t *testing.T) {
	svc, mock, _ := newTestService(t)

	_, err := svc.Create(context.Background(), 7, CreateInput{JobID: 0})
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeValidation, ae.Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL before validation passes")
}

func TestCreateRateLimited(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	breaker := resilience.NewBreaker("database", 10, 0.5, 30*time.Second)
	svc := NewService(postgres.New(db), breaker, resilience.NewRateLimiter(client), 1, time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM jobs WHERE id`).WillReturnRows(jobRow(100, 3, "ACTIVE"))
	mock.ExpectQuery(`INSERT INTO applications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(`INSERT INTO outbox_events`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err = svc.Create(context.Background(), 7, CreateInput{JobID: 100})
	require.NoError(t, err)

	// Second apply within the window is throttled before any SQL runs.
	_, err = svc.Create(context.Background(), 7, CreateInput{JobID: 101})
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeRateLimited, ae.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeStatusByJobOwner(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM applications WHERE id`).WithArgs(int64(42)).
		WillReturnRows(appRow(42, 7, 100, "SUBMITTED"))
	mock.ExpectQuery(`FROM jobs WHERE id`).WithArgs(int64(100)).
		WillReturnRows(jobRow(100, 3, "ACTIVE"))
	mock.ExpectExec(`UPDATE applications`).
		WithArgs(int64(42), "UNDER_REVIEW", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO outbox_events`).
		WithArgs("application", int64(42), "APPLICATION_STATUS_CHANGED", sqlmock.AnyArg(),
			"application.created", "100", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app, err := svc.ChangeStatus(context.Background(), 3, 42, domain.StatusUnderReview)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, app.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeStatusForeignEmployer(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM applications WHERE id`).
		WillReturnRows(appRow(42, 7, 100, "SUBMITTED"))
	mock.ExpectQuery(`FROM jobs WHERE id`).
		WillReturnRows(jobRow(100, 3, "ACTIVE"))
	mock.ExpectRollback()

	_, err := svc.ChangeStatus(context.Background(), 99, 42, domain.StatusUnderReview)
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeForbidden, ae.Code)
}

func TestChangeStatusInvalidTransitionRollsBack(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM applications WHERE id`).
		WillReturnRows(appRow(42, 7, 100, "REJECTED"))
	mock.ExpectQuery(`FROM jobs WHERE id`).
		WillReturnRows(jobRow(100, 3, "ACTIVE"))
	mock.ExpectRollback()

	_, err := svc.ChangeStatus(context.Background(), 3, 42, domain.StatusOffered)
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeInvalidTransition, ae.Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "no update and no event after a refused transition")
}

func TestWithdrawByOwner(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM applications WHERE id`).
		WillReturnRows(appRow(42, 7, 100, "OFFERED"))
	mock.ExpectExec(`UPDATE applications`).
		WithArgs(int64(42), "WITHDRAWN", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO outbox_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app, err := svc.Withdraw(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWithdrawn, app.Status)
}

func TestWithdrawForeignApplication(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM applications WHERE id`).
		WillReturnRows(appRow(42, 7, 100, "SUBMITTED"))
	mock.ExpectRollback()

	_, err := svc.Withdraw(context.Background(), 8, 42)
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeForbidden, ae.Code)
}

func TestInfraFaultsOpenTheCircuit(t *testing.T) {
	svc, mock, breaker := newTestService(t)

	// Window size 2: two infrastructure failures trip the breaker.
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, _ = svc.Create(context.Background(), 7, CreateInput{JobID: 100})
	_, _ = svc.Create(context.Background(), 7, CreateInput{JobID: 100})
	assert.Equal(t, resilience.StateOpen, breaker.State())

	// While open, commands fail fast with SERVICE_UNAVAILABLE.
	_, err := svc.Create(context.Background(), 7, CreateInput{JobID: 100})
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.CodeUnavailable, ae.Code)
}
