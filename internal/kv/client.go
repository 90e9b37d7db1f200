// Package kv provides a pooled Redis client with fail-soft semantics.
//
// Callers treat the store as an optional accelerator. When Redis is
// unreachable, reads look like misses and writes are dropped, so the
// application keeps serving from the primary store.
package kv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/pkg/logger"
	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

const (
	// DefaultPoolSize bounds concurrent connections to the store.
	DefaultPoolSize = 50

	// DefaultDialTimeout is the maximum time to wait for a new connection.
	DefaultDialTimeout = 5 * time.Second
)

// Config holds the configuration for creating a Client.
type Config struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// Client wraps go-redis with the fail-soft behavior the rest of the
// application relies on. Create it via New and pass it as a dependency.
type Client struct {
	rdb *redis.Client
	log *logger.Logger
}

// New creates a Client and probes the connection once. An unreachable
// store is logged but not fatal; the client is returned either way and
// every operation degrades to a miss until the store comes back.
func New(ctx context.Context, cfg Config, log *logger.Logger) *Client {
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = DefaultPoolSize
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = DefaultDialTimeout
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    poolSize,
		DialTimeout: dialTimeout,
	})

	c := &Client{rdb: rdb, log: log}

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, running without cache", zap.Error(err))
	}

	return c
}

// Get returns the value for key. The second return reports whether a
// value was found; absent keys and store failures both come back false.
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.degraded("get", key, err)
		return "", false
	}
	return val, true
}

// Set stores value under key with the given TTL. A zero TTL stores the
// key without expiration. Returns false if the write was dropped.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.degraded("set", key, err)
		return false
	}
	return true
}

// Delete removes key. Returns true only if a key was actually removed.
func (c *Client) Delete(ctx context.Context, key string) bool {
	n, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		c.degraded("delete", key, err)
		return false
	}
	return n > 0
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) bool {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		c.degraded("exists", key, err)
		return false
	}
	return n > 0
}

// Incr atomically increments the integer at key, creating it at 1 when
// absent. Unlike the fail-soft accessors it surfaces the error so
// callers with their own degradation policy can apply it.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// Expire sets a TTL on an existing key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

// Ping tests the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// IsConnected tests if the store is reachable, bounded by a short timeout.
func (c *Client) IsConnected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return c.Ping(ctx) == nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) degraded(op, key string, err error) {
	metrics.KVDegradedTotal.WithLabelValues(op).Inc()
	c.log.Warn("redis operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
