// Package profile serves user profiles on the write-through cache class:
// every save updates the primary store and the cache in the same call, so
// profile reads are almost always hits.
package profile

import (
	"context"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/cache"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/postgres"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
)

type Service struct {
	repo    *postgres.Repo
	cache   *cache.Layer
	breaker *resilience.Breaker // named "database"

	now func() time.Time
}

func NewService(repo *postgres.Repo, cacheLayer *cache.Layer, breaker *resilience.Breaker) *Service {
	return &Service{repo: repo, cache: cacheLayer, breaker: breaker, now: time.Now}
}

type SaveInput struct {
	FullName  string
	Headline  string
	Location  string
	ResumeURL string
	Email     string
	Phone     string
	PushToken string
}

// Save writes through: primary store first, then the cache. A cache write
// failure degrades to cache-aside behavior on the next read, never fails the
// save.
func (s *Service) Save(ctx context.Context, userID int64, in SaveInput) (*postgres.Profile, error) {
	if userID <= 0 {
		return nil, domain.ErrValidation("userId must be a positive id")
	}

	p := &postgres.Profile{
		UserID:    userID,
		FullName:  in.FullName,
		Headline:  in.Headline,
		Location:  in.Location,
		ResumeURL: in.ResumeURL,
		Email:     in.Email,
		Phone:     in.Phone,
		PushToken: in.PushToken,
		UpdatedAt: s.now().UTC(),
	}

	err := s.breaker.Execute(func() error {
		return s.repo.UpsertProfile(ctx, p)
	}, nil)
	if err != nil {
		metrics.RecordDBFailed()
		return nil, err
	}
	metrics.RecordDBSaved()

	s.cache.WriteThrough(ctx, cache.ProfileKey(userID), p, cache.ProfileTTL)
	return p, nil
}

// Get reads the profile through the cache. With the database circuit open
// the stale shadow still serves the last known value.
func (s *Service) Get(ctx context.Context, userID int64) (*postgres.Profile, error) {
	p, err := cache.GetOrLoad(ctx, s.cache, "profile", cache.ProfileKey(userID), cache.ProfileTTL, func(ctx context.Context) (*postgres.Profile, error) {
		var out *postgres.Profile
		execErr := s.breaker.Execute(func() error {
			var loadErr error
			out, loadErr = s.repo.GetProfile(ctx, userID)
			if loadErr != nil && !domain.IsRetryable(loadErr) {
				// NOT_FOUND must not trip the breaker.
				out = nil
				return nil
			}
			return loadErr
		}, nil)
		if execErr != nil {
			return nil, execErr
		}
		if out == nil {
			return nil, domain.ErrNotFound("profile not found")
		}
		return out, nil
	})
	if err == nil {
		return p, nil
	}
	if !domain.IsRetryable(err) {
		return nil, err
	}

	if stale, ok := cache.GetStale[*postgres.Profile](ctx, s.cache, cache.ProfileKey(userID)); ok {
		log := logger.WithComponent("profile")
		log.Warn().Err(err).Int64("user_id", userID).
			Msg("primary read failed, serving stale profile")
		return stale, nil
	}
	return nil, err
}
