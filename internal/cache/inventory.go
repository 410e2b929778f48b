package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courtside/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	UserKeyPrefix   = "user:%d"
	CountsKeyPrefix = "user:%d:courtship_counts"
)

const (
	UserTTL   = 5 * time.Minute
	CountsTTL = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func CountsKey(userID uint) string {
	return fmt.Sprintf(CountsKeyPrefix, userID)
}

// GetJSON loads key into dest. It reports false on a miss, when Redis is
// unavailable, or when the stored value cannot be decoded.
func GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if client == nil {
		return false
	}
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		Invalidate(ctx, key)
		return false
	}
	return true
}

// SetJSON stores value under key. Failures are logged and otherwise ignored.
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := client.Set(ctx, key, raw, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Aside returns the cached value for key, or calls fetch and caches its result.
func Aside[T any](ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	if GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}
	SetJSON(ctx, key, value, ttl)
	return value, nil
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateCounts drops the cached courtship counts of every given user.
func InvalidateCounts(ctx context.Context, userIDs ...uint) {
	for _, id := range userIDs {
		Invalidate(ctx, CountsKey(id))
	}
}
