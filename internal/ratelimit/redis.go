package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisLimiter is a fixed-window counter shared across instances. The key's
// TTL is set only when the first request opens the window, so the window
// resets a fixed duration after that first request.
type RedisLimiter struct {
	client *redis.Client
	max    int
	length time.Duration
}

func NewRedisLimiter(client *redis.Client, max int, length time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, length: length}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.length).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.max), nil
}

// Ping probes the backing store; used by the health endpoint.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
