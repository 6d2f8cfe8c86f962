package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

// Option tweaks the parsed connection options.
type Option func(*redis.Options)

// WithPoolSize caps the connection pool.
func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) {
		if d > 0 {
			o.DialTimeout = d
		}
	}
}

// NewClient connects to redisURL and pings it once. The returned client
// backs the rate cache, idempotency keys and the redis alert channel.
func NewClient(ctx context.Context, redisURL string, opts ...Option) (*redis.Client, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	for _, opt := range opts {
		opt(parsed)
	}

	client := redis.NewClient(parsed)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", parsed.Addr, err)
	}

	return client, nil
}
