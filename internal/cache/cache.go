// Package cache implements the read-path caching layer: cache-aside for
// search and detail, write-through for profiles, with stampede locking,
// jittered TTLs and a long-lived stale shadow copy for degraded paths.
package cache

import (
	"context"
	"math/rand"
	"time"

	infraredis "github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/redis"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
)

// TTL bundles the base duration and jitter half-width for one cache class.
type TTL struct {
	Base   time.Duration
	Jitter time.Duration
}

// Defaults per cache class.
var (
	SearchTTL  = TTL{Base: 60 * time.Second, Jitter: 10 * time.Second}
	DetailTTL  = TTL{Base: 300 * time.Second, Jitter: 30 * time.Second}
	ProfileTTL = TTL{Base: 30 * time.Minute}

	StaleShadowTTL = 24 * time.Hour
	LockTTL        = 10 * time.Second
	lockPollEvery  = 50 * time.Millisecond
	lockPollFor    = 2 * time.Second
)

// Configure overrides the per-class TTL bases from runtime configuration,
// keeping each class's jitter proportional to its default ratio. Zero values
// leave the class untouched.
func Configure(search, detail, profile time.Duration) {
	if search > 0 {
		SearchTTL = TTL{Base: search, Jitter: search / 6}
	}
	if detail > 0 {
		DetailTTL = TTL{Base: detail, Jitter: detail / 10}
	}
	if profile > 0 {
		ProfileTTL = TTL{Base: profile}
	}
}

// Jittered draws a TTL uniformly from [base-jitter, base+jitter], floored
// at one second.
func (t TTL) Jittered() time.Duration {
	d := t.Base
	if t.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(2*t.Jitter))) - t.Jitter
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}

// Layer is the cache facade. Cache faults never fail a read: a broken cache
// degrades to the loader, and a broken loader degrades to the stale shadow.
type Layer struct {
	client  *infraredis.Client
	breaker *resilience.Breaker // named "cache"
}

func NewLayer(client *infraredis.Client, breaker *resilience.Breaker) *Layer {
	if breaker == nil {
		breaker = resilience.NewBreaker("cache", 10, 0.5, 15*time.Second)
	}
	return &Layer{client: client, breaker: breaker}
}

// GetOrLoad is the cache-aside read path for hot keys:
//  1. cache hit -> return.
//  2. miss -> take the stampede lock; the winner rebuilds and populates,
//     losers briefly poll for the rebuild, then fall back to serving stale.
//  3. loader failure -> stale shadow, if present.
func GetOrLoad[T any](ctx context.Context, l *Layer, layerName, key string, ttl TTL, load func(context.Context) (T, error)) (T, error) {
	var zero T
	log := logger.WithComponent("cache").With().Str("key", key).Logger()

	if l == nil || l.client == nil {
		return load(ctx)
	}

	// Circuit open: bypass cache and hit the primary store directly.
	var cached T
	var found bool
	err := l.breaker.Execute(func() error {
		var err error
		found, err = l.client.Get(ctx, key, &cached)
		return err
	}, nil)
	if err != nil {
		log.Warn().Err(err).Msg("cache get failed, bypassing")
		return load(ctx)
	}
	if found {
		metrics.RecordCacheHit(layerName)
		return cached, nil
	}
	metrics.RecordCacheMiss(layerName)

	acquired, lockErr := l.client.TryLock(ctx, LockKey(key), LockTTL)
	if lockErr != nil {
		acquired = true // lock store down: rebuild without coordination
	}

	if !acquired {
		// Another worker is rebuilding; poll briefly for its result.
		deadline := time.Now().Add(lockPollFor)
		for time.Now().Before(deadline) {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(lockPollEvery):
			}
			if ok, err := l.client.Get(ctx, key, &cached); err == nil && ok {
				metrics.RecordCacheHit(layerName)
				return cached, nil
			}
		}
		// Rebuild is slow; serve stale when we have it.
		if stale, ok := readStale[T](ctx, l, key); ok {
			return stale, nil
		}
		return load(ctx)
	}
	defer func() {
		if lockErr == nil {
			_ = l.client.Unlock(ctx, LockKey(key))
		}
	}()

	val, err := load(ctx)
	if err != nil {
		// Primary store down: last resort is the shadow copy.
		if stale, ok := readStale[T](ctx, l, key); ok {
			log.Warn().Err(err).Msg("loader failed, serving stale shadow")
			return stale, nil
		}
		return zero, err
	}

	l.populate(ctx, key, val, ttl)
	return val, nil
}

// WriteThrough updates the cache immediately after a primary write so
// readers see the new value without waiting for expiry.
func (l *Layer) WriteThrough(ctx context.Context, key string, val any, ttl TTL) {
	if l == nil || l.client == nil {
		return
	}
	l.populate(ctx, key, val, ttl)
}

func (l *Layer) populate(ctx context.Context, key string, val any, ttl TTL) {
	log := logger.WithComponent("cache").With().Str("key", key).Logger()
	if err := l.client.Set(ctx, key, val, ttl.Jittered()); err != nil {
		log.Warn().Err(err).Msg("cache set failed")
	}
	// Shadow writes are best-effort; a failure is logged, never propagated.
	if err := l.client.Set(ctx, StaleKey(key), val, StaleShadowTTL); err != nil {
		log.Warn().Err(err).Msg("stale shadow set failed")
	}
}

func readStale[T any](ctx context.Context, l *Layer, key string) (T, bool) {
	var v T
	ok, err := l.client.Get(ctx, StaleKey(key), &v)
	if err != nil || !ok {
		var zero T
		return zero, false
	}
	return v, true
}

// GetStale exposes the degraded-path read for callers that handle the
// primary circuit themselves (write-through profile reads).
func GetStale[T any](ctx context.Context, l *Layer, key string) (T, bool) {
	if l == nil || l.client == nil {
		var zero T
		return zero, false
	}
	return readStale[T](ctx, l, key)
}

// InvalidateDetail evicts one detail entry and the whole search prefix.
func (l *Layer) InvalidateDetail(ctx context.Context, jobID int64) {
	if l == nil || l.client == nil {
		return
	}
	log := logger.WithComponent("cache")
	if err := l.client.Delete(ctx, DetailKey(jobID), StaleKey(DetailKey(jobID))); err != nil {
		log.Warn().Err(err).Int64("job_id", jobID).Msg("detail invalidation failed")
	}
	l.InvalidateSearch(ctx)
}

// InvalidateSearch drops every cached search page.
func (l *Layer) InvalidateSearch(ctx context.Context) {
	if l == nil || l.client == nil {
		return
	}
	if _, err := l.client.DeleteByPattern(ctx, SearchPattern()); err != nil {
		log := logger.WithComponent("cache")
		log.Warn().Err(err).Msg("search invalidation failed")
	}
}
