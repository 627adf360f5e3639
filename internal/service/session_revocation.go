package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dockmap/auth-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RedisSessionRevoker stores per-user revocation timestamps in Redis
type RedisSessionRevoker struct {
	redis *database.Redis
}

// NewRedisSessionRevoker creates a new Redis backed session revoker
func NewRedisSessionRevoker(redis *database.Redis) *RedisSessionRevoker {
	return &RedisSessionRevoker{redis: redis}
}

func revocationKey(userID string) string {
	return fmt.Sprintf("revoked:user:%s", userID)
}

// RevokeBefore rejects access tokens issued before at, stored as unix milliseconds.
// The key lives as long as the longest access token that could still be presented.
func (s *RedisSessionRevoker) RevokeBefore(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	err := s.redis.Client.Set(ctx, revocationKey(userID), at.UnixMilli(), ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store revocation: %w", err)
	}
	return nil
}

// RevokedAt returns the revocation instant for the user, if any
func (s *RedisSessionRevoker) RevokedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	value, err := s.redis.Client.Get(ctx, revocationKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to check revocation: %w", err)
	}

	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid revocation value %q: %w", value, err)
	}

	return time.UnixMilli(millis), true, nil
}
