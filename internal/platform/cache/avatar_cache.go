package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ErrNoAvatar indicates the provider has no profile picture for the phone.
var ErrNoAvatar = errors.New("no avatar available")

// FetchFunc retrieves a profile-picture URL from the provider.
type FetchFunc func(ctx context.Context, phone string) (string, error)

// AvatarCache resolves profile-picture URLs with a Redis-backed TTL cache and
// an in-process single-flight map keyed by phone, so a burst of inbound
// messages from one phone triggers at most one provider lookup.
type AvatarCache struct {
	rdb    *redis.Client
	group  singleflight.Group
	fetch  FetchFunc
	ttl    time.Duration
	logger *slog.Logger
}

// New creates an AvatarCache. rdb may be nil, in which case only the
// single-flight layer is used and every resolution hits the fetcher.
func New(rdb *redis.Client, fetch FetchFunc, ttl time.Duration, logger *slog.Logger) *AvatarCache {
	return &AvatarCache{
		rdb:    rdb,
		fetch:  fetch,
		ttl:    ttl,
		logger: logger.With("component", "avatar_cache"),
	}
}

func avatarKey(phone string) string {
	return "avatar:" + phone
}

// ResolveAvatar returns the cached or freshly fetched profile-picture URL for
// phone. Callers treat failures as best-effort: an error never blocks message
// handling.
func (c *AvatarCache) ResolveAvatar(ctx context.Context, phone string) (string, error) {
	if c.rdb != nil {
		url, err := c.rdb.Get(ctx, avatarKey(phone)).Result()
		if err == nil {
			return url, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Avatar cache read failed, falling through to fetch", "phone", phone, "error", err)
		}
	}

	v, err, _ := c.group.Do(phone, func() (interface{}, error) {
		url, err := c.fetch(ctx, phone)
		if err != nil {
			return "", err
		}
		if c.rdb != nil {
			if err := c.rdb.Set(ctx, avatarKey(phone), url, c.ttl).Err(); err != nil {
				c.logger.WarnContext(ctx, "Avatar cache write failed", "phone", phone, "error", err)
			}
		}
		return url, nil
	})
	if err != nil {
		return "", fmt.Errorf("avatar fetch for %s: %w", phone, err)
	}
	return v.(string), nil
}
