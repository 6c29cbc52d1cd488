// Package redis wraps the go-redis client behind the narrow command
// surface the job queue needs, so the queue can run against an in-memory
// fake in tests.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"document-ai-pipeline/internal/config"
)

type RedisClient interface {
	Ping(ctx context.Context) error
	HSet(ctx context.Context, key string, values ...interface{}) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	LPush(ctx context.Context, key string, values ...interface{}) error
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error)
	SAdd(ctx context.Context, key string, members ...interface{}) error
	SRem(ctx context.Context, key string, members ...interface{}) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
	Close() error
}

var _ RedisClient = (*redClient)(nil)

type redClient struct {
	cli *redis.Client
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redClient, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redClient{cli: c}, nil
}

func (c *redClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redClient) HSet(ctx context.Context, key string, values ...interface{}) error {
	return c.cli.HSet(ctx, key, values...).Err()
}

func (c *redClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.cli.HGetAll(ctx, key).Result()
}

func (c *redClient) LPush(ctx context.Context, key string, values ...interface{}) error {
	return c.cli.LPush(ctx, key, values...).Err()
}

func (c *redClient) BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error) {
	return c.cli.BRPop(ctx, timeout, keys...).Result()
}

func (c *redClient) SAdd(ctx context.Context, key string, members ...interface{}) error {
	return c.cli.SAdd(ctx, key, members...).Err()
}

func (c *redClient) SRem(ctx context.Context, key string, members ...interface{}) error {
	return c.cli.SRem(ctx, key, members...).Err()
}

func (c *redClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.cli.SMembers(ctx, key).Result()
}

func (c *redClient) SCard(ctx context.Context, key string) (int64, error) {
	return c.cli.SCard(ctx, key).Result()
}

func (c *redClient) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *redClient) Close() error { return c.cli.Close() }
