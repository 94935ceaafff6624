package postgres

import (
	"context"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/outbox"
)

const insertOutboxSQL = `
INSERT INTO outbox_events (
  aggregate_type, aggregate_id, event_type, payload,
  topic, partition_key, published, retry_count, created_at
) VALUES ($1, $2, $3, $4, $5, $6, FALSE, 0, $7)
`

// FIFO over created_at; rows past the attempt threshold are dead letters and
// stay out of the scan. Served by the (published, created_at) index.
const selectUnpublishedSQL = `
SELECT id, aggregate_type, aggregate_id, event_type, payload,
       topic, partition_key, published, published_at, retry_count, created_at
FROM outbox_events
WHERE published = FALSE AND retry_count < $1
ORDER BY created_at ASC, id ASC
LIMIT $2
`

const markPublishedSQL = `
UPDATE outbox_events
SET published = TRUE, published_at = $2
WHERE id = $1
`

const incrementRetrySQL = `
UPDATE outbox_events
SET retry_count = retry_count + 1
WHERE id = $1
`

const countDeadLettersSQL = `
SELECT COUNT(*) FROM outbox_events
WHERE published = FALSE AND retry_count >= $1
`

const resetRetriesSQL = `
UPDATE outbox_events
SET retry_count = 0
WHERE id = $1 AND published = FALSE
`

var _ outbox.Store = (*Repo)(nil)

func (r *Repo) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]outbox.Event, error) {
	rows, err := r.db.QueryContext(ctx, selectUnpublishedSQL, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []outbox.Event
	for rows.Next() {
		var ev outbox.Event
		if err := rows.Scan(
			&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &ev.Payload,
			&ev.Topic, &ev.PartitionKey, &ev.Published, &ev.PublishedAt,
			&ev.RetryCount, &ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Repo) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, markPublishedSQL, id, at.UTC())
	return err
}

func (r *Repo) IncrementRetry(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, incrementRetrySQL, id)
	return err
}

func (r *Repo) CountDeadLetters(ctx context.Context, maxAttempts int) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, countDeadLettersSQL, maxAttempts).Scan(&n)
	return n, err
}

func (r *Repo) ResetRetries(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, resetRetriesSQL, id)
	return err
}
