package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

type clientOptions struct {
	poolSize     int
	pingAttempts uint64
	pingBackoff  time.Duration
}

// Option tunes NewClient.
type Option func(*clientOptions)

// WithPoolSize overrides the connection pool size from the URL.
func WithPoolSize(n int) Option {
	return func(o *clientOptions) { o.poolSize = n }
}

// WithPingAttempts sets how many times the startup ping is tried before
// giving up. Values below one mean a single attempt.
func WithPingAttempts(n int, interval time.Duration) Option {
	return func(o *clientOptions) {
		if n < 1 {
			n = 1
		}
		o.pingAttempts = uint64(n)
		o.pingBackoff = interval
	}
}

// NewClient parses redisURL and returns a client that answered PING. The
// rate cache and idempotency store both share it.
func NewClient(ctx context.Context, redisURL string, opts ...Option) (*redis.Client, error) {
	cfg := clientOptions{pingAttempts: 5, pingBackoff: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.poolSize > 0 {
		redisOpts.PoolSize = cfg.poolSize
	}

	client := redis.NewClient(redisOpts)

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.pingBackoff), cfg.pingAttempts-1),
		ctx,
	)
	if err := backoff.Retry(func() error { return client.Ping(ctx).Err() }, b); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
