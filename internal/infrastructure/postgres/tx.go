package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/outbox"
)

// TxRepo is the transaction-scoped surface handed to command handlers: the
// domain write and its outbox append share one commit.
type TxRepo struct {
	tx *sql.Tx
}

// WithTx runs fn in a read-committed transaction; any error rolls back.
func (r *Repo) WithTx(ctx context.Context, fn func(tr *TxRepo) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		// Safety: roll back on panic to avoid a leaked tx.
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *TxRepo) InsertApplication(ctx context.Context, a *domain.Application) error {
	err := t.tx.QueryRowContext(ctx, insertApplicationSQL,
		a.UserID, a.JobID, string(a.Status),
		a.CoverLetter, a.ResumeURL, a.Notes,
		a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if isUniqueViolation(err) {
		return domain.ErrConflict("DUPLICATE_APPLICATION: user already applied to this job")
	}
	return err
}

func (t *TxRepo) GetApplicationForUpdate(ctx context.Context, id int64) (*domain.Application, error) {
	return scanApplication(t.tx.QueryRowContext(ctx, selectApplicationSQL+" FOR UPDATE", id))
}

func (t *TxRepo) UpdateApplication(ctx context.Context, a *domain.Application) error {
	_, err := t.tx.ExecContext(ctx, updateApplicationSQL,
		a.ID, string(a.Status), a.Notes, a.UpdatedAt)
	return err
}

func (t *TxRepo) GetJobForUpdate(ctx context.Context, id int64) (*domain.Job, error) {
	row := t.tx.QueryRowContext(ctx, selectJobSQL+" FOR UPDATE", id)
	j, err := scanJobRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("job not found")
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (t *TxRepo) UpdateJob(ctx context.Context, j *domain.Job) error {
	_, err := t.tx.ExecContext(ctx, updateJobSQL,
		j.ID, j.Title, j.Description, j.Location, string(j.Status),
		nullTime(j.ApplicationDeadline), j.UpdatedAt)
	return err
}

func (t *TxRepo) InsertJob(ctx context.Context, j *domain.Job) error {
	return t.tx.QueryRowContext(ctx, insertJobSQL,
		j.EmployerID, j.Title, j.Description, j.Location, string(j.Status),
		nullTime(j.ApplicationDeadline), j.CreatedAt, j.UpdatedAt,
	).Scan(&j.ID)
}

// AppendOutbox writes the event row inside the same transaction as the
// domain write. Either both commit or neither exists.
func (t *TxRepo) AppendOutbox(ctx context.Context, ev outbox.Event) error {
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, insertOutboxSQL,
		ev.AggregateType, ev.AggregateID, ev.EventType,
		ev.Payload, ev.Topic, ev.PartitionKey, created,
	)
	return err
}
