// Package outbox implements the transactional outbox: domain writes and the
// events they emit commit in one transaction; a background publisher ships
// the events to the bus afterwards.
package outbox

import (
	"context"
	"time"
)

// Event is one domain event awaiting publication.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   int64
	EventType     string
	Payload       []byte
	Topic         string
	PartitionKey  string

	Published   bool
	PublishedAt *time.Time
	RetryCount  int
	CreatedAt   time.Time
}

// Store persists outbox rows. AppendTx runs inside the caller's domain
// transaction; everything else is used by the publisher outside of it.
type Store interface {
	// FetchUnpublished returns up to limit unpublished events with
	// retryCount < maxAttempts, oldest first.
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]Event, error)

	// MarkPublished flips published=true and stamps publishedAt.
	MarkPublished(ctx context.Context, id int64, at time.Time) error

	// IncrementRetry bumps retryCount after a failed publish.
	IncrementRetry(ctx context.Context, id int64) error

	// CountDeadLetters counts events parked at retryCount >= maxAttempts.
	CountDeadLetters(ctx context.Context, maxAttempts int) (int64, error)

	// ResetRetries re-arms a dead-lettered event for publishing.
	ResetRetries(ctx context.Context, id int64) error
}
