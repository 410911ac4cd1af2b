// Package redis opens the connection backing the distributed rate-limit
// counters. Redis is optional; without it the limiter falls back to its
// in-process store.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sponsorlink/internal/platform/config"
)

// Client wraps go-redis so callers get a health probe alongside the raw
// commands.
type Client struct {
	*redis.Client
}

// New dials Redis per the configuration and verifies the connection with a
// ping. A nil client with a nil error means Redis is not configured.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
