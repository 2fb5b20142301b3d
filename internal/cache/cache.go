package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps a Redis connection. Every call logs its outcome and returns the
// original error; callers decide whether a failure matters.
type Client struct {
	client redis.UniversalClient
	log    *zap.Logger
}

// New parses a redis:// URL and creates a client.
func New(url string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts), log), nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client redis.UniversalClient, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{client: client, log: log.Named("redis")}
}

// Redis exposes the underlying client for components that need raw commands.
func (c *Client) Redis() redis.UniversalClient {
	return c.client
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

// Get returns the value stored at key, or (nil, nil) when the key is missing.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug("redis get", zap.String("key", key), zap.Bool("found", false))
		return nil, nil
	}
	if err != nil {
		c.fail("get", key, err)
		return nil, err
	}
	c.log.Debug("redis get", zap.String("key", key), zap.Bool("found", true))
	return res, nil
}

// Set stores value at key. A zero ttl stores without expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.fail("set", key, err)
		return err
	}
	c.log.Debug("redis set", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

// Delete removes key and reports how many keys were removed.
func (c *Client) Delete(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Del(ctx, key).Result()
	if err != nil {
		c.fail("del", key, err)
		return 0, err
	}
	c.log.Debug("redis del", zap.String("key", key), zap.Int64("deleted", n))
	return n, nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		c.fail("exists", key, err)
		return false, err
	}
	return n > 0, nil
}

// Expire sets a ttl on key. It reports false when the key does not exist.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		c.fail("expire", key, err)
		return false, err
	}
	c.log.Debug("redis expire", zap.String("key", key), zap.Duration("ttl", ttl), zap.Bool("success", ok))
	return ok, nil
}

// TTL returns the remaining time to live of key. Redis reports -2 for a
// missing key and -1 for a key without expiry; both come back as negative durations.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		c.fail("ttl", key, err)
		return 0, err
	}
	return d, nil
}

// SetJSON marshals value and stores it at key.
func (c *Client) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.Set(ctx, key, payload, ttl)
}

// GetJSON decodes the value at key into dst. It reports false when the key is missing.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.Get(ctx, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (c *Client) fail(op, key string, err error) {
	c.log.Error("redis "+op+" failed",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(err),
		zap.Stack("stack"),
	)
}
