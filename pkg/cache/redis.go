package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a shared Redis instance, for deployments where
// several engine processes should see the same cached call results.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithRedisTTL sets the per-entry lifetime. Zero means no expiry.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithRedisLogger sets the logger used for transport failures.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedis wraps an existing client. The caller owns the client lifecycle.
func NewRedis(client *redis.Client, options ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// DialRedis connects to addr and returns a ready Store. Ping failures are
// returned so callers can fall back to an in-memory store.
func DialRedis(ctx context.Context, addr, password string, db int, options ...RedisOption) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return NewRedis(client, options...), nil
}

// Get fetches a key. Transport errors degrade to a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache: redis get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return value, true
}

// Set stores a key. Failures are logged and otherwise ignored; the cache is
// best effort.
func (r *Redis) Set(ctx context.Context, key string, value []byte) {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		r.logger.Warn("cache: redis set failed", "key", key, "error", err)
	}
}

// Close releases the underlying client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
