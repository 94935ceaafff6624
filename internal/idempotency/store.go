// Package idempotency guards effectful operations against duplicate
// invocation. Dedup mode is an atomic set-if-absent; memoize mode
// additionally stores the handler's response for replay.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL must exceed the worst-case redelivery delay. A 60s TTL once
// produced duplicate notifications when consumer lag passed 60s; 24h is the
// documented floor.
const DefaultTTL = 24 * time.Hour

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Key(eventID string) string {
	return fmt.Sprintf("idempotency:%s", eventID)
}

func (s *Store) responseKey(eventID string) string {
	return fmt.Sprintf("idempotency:response:%s", eventID)
}

// Acquire atomically claims the key. firstTime=false means a duplicate; the
// caller must not re-invoke the effectful operation.
func (s *Store) Acquire(ctx context.Context, eventID string) (firstTime bool, err error) {
	set, err := s.client.SetNX(ctx, s.Key(eventID), time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency acquire: %w", err)
	}
	return set, nil
}

// Release frees the key so a deliberate retry can run after a recoverable
// failure.
func (s *Store) Release(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, s.Key(eventID)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

// StoreResponse records the handler's response for memoize mode.
func (s *Store) StoreResponse(ctx context.Context, eventID string, response []byte) error {
	if err := s.client.Set(ctx, s.responseKey(eventID), response, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency store response: %w", err)
	}
	return nil
}

// AcquireOrReplay is the memoize-mode acquire. When the key is a duplicate
// and a stored response exists, it is returned for replay without invoking
// the handler.
func (s *Store) AcquireOrReplay(ctx context.Context, eventID string) (firstTime bool, stored []byte, err error) {
	first, err := s.Acquire(ctx, eventID)
	if err != nil {
		return false, nil, err
	}
	if first {
		return true, nil, nil
	}
	val, err := s.client.Get(ctx, s.responseKey(eventID)).Bytes()
	if err == redis.Nil {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("idempotency replay: %w", err)
	}
	return false, val, nil
}
