package notify

import (
	"context"
	"errors"
	"strconv"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/postgres"
)

// ProfileResolver resolves channel addresses from the profiles table. A user
// without a profile or without the channel's address cannot be notified on
// that channel, which is a permanent condition for the event at hand.
type ProfileResolver struct {
	repo *postgres.Repo
}

func NewProfileResolver(repo *postgres.Repo) *ProfileResolver {
	return &ProfileResolver{repo: repo}
}

func (r *ProfileResolver) Resolve(ctx context.Context, channel string, userID int64) (string, error) {
	p, err := r.repo.GetProfile(ctx, userID)
	if err != nil {
		var ae *domain.AppError
		if errors.As(err, &ae) && ae.Code == domain.CodeNotFound {
			return "", domain.ErrPermanent("no profile for user "+strconv.FormatInt(userID, 10), nil)
		}
		return "", domain.ErrTransient("profile lookup failed", err)
	}
	switch channel {
	case ChannelEmail:
		return p.Email, nil
	case ChannelSMS:
		return p.Phone, nil
	case ChannelPush:
		return p.PushToken, nil
	}
	return "", domain.ErrPermanent("unknown channel "+channel, nil)
}

// StaticResolver serves fixed addresses. Test and dev-mode helper.
type StaticResolver map[int64]map[string]string

func (s StaticResolver) Resolve(_ context.Context, channel string, userID int64) (string, error) {
	byChannel, ok := s[userID]
	if !ok {
		return "", domain.ErrPermanent("no profile for user "+strconv.FormatInt(userID, 10), nil)
	}
	return byChannel[channel], nil
}
