package settings

import (
	"context" // Context for Redis operations
	"time"    // TTLs

	"github.com/redis/go-redis/v9" // Redis client
)

// SharedCache is the cross-process cache tier. Values are JSON text, the same
// encoding the settings table uses. Implementations must treat a missing key
// as (value="", ok=false, err=nil).
type SharedCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// redisShared backs SharedCache with Redis.
type redisShared struct {
	rdb *redis.Client
}

// NewRedisShared wraps a Redis client as the shared cache tier.
func NewRedisShared(rdb *redis.Client) SharedCache {
	return &redisShared{rdb: rdb}
}

func (r *redisShared) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return "", false, nil // Key does not exist
	} else if err != nil {
		return "", false, err // Other Redis error
	}
	return val, true, nil
}

func (r *redisShared) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err() // Set value in Redis with TTL
}

func (r *redisShared) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}
