package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements BucketStore with a fixed window per key, shared
// across instances. INCR plus a first-writer EXPIRE keeps it to one round
// trip in the steady state.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	redisKey := "ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return nil, fmt.Errorf("ratelimit expire: %w", err)
		}
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("ratelimit ttl: %w", err)
	}
	if ttl < 0 {
		// Key lost its expiry (e.g. restored from a dump); reattach one.
		ttl = window
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return nil, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	resetAt := time.Now().Add(ttl)

	if int(count) > limit {
		return &Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: retryAfterSeconds(time.Now(), resetAt),
			ResetAt:    resetAt,
		}, nil
	}
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, "ratelimit:"+key).Err()
}
