package redis

import (
	"context"
	"fmt"
	"strings"

	"bimcloud-demo/internal/config"

	"github.com/go-redis/redis/v8"
)

// Publisher is the subset of Redis used to broadcast operation events.
type Publisher interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

var _ Publisher = (*Client)(nil)

type Client struct {
	cli *redis.Client
}

// NewClient connects and pings.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Client{cli: c}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *Client) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.cli.Publish(ctx, channel, message).Err()
}

func (c *Client) Close() error { return c.cli.Close() }

// options builds connection options. cfg.URL may be a redis:// URL or a bare host:port; an
// explicit password or non-zero DB in cfg wins over the URL's.
func options(cfg *config.RedisConfig) (*redis.Options, error) {
	if !strings.Contains(cfg.URL, "://") {
		return &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return opts, nil
}
