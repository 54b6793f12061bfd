package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// GoRedisAdapter wraps a go-redis client to implement Store
type GoRedisAdapter struct {
	client redis.UniversalClient
}

// NewGoRedisAdapter adapts an already connected go-redis client
func NewGoRedisAdapter(client redis.UniversalClient) *GoRedisAdapter {
	return &GoRedisAdapter{client: client}
}

// Get retrieves a value from Redis. A missing key is reported as ErrCacheMiss.
func (a *GoRedisAdapter) Get(ctx context.Context, key string) (string, error) {
	val, err := a.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

// Set stores a value in Redis with TTL
func (a *GoRedisAdapter) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return a.client.Set(ctx, key, value, ttl).Err()
}

// Ping tests the Redis connection
func (a *GoRedisAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
