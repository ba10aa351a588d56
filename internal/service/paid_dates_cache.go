package service

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/staybook/staybook/internal/redis"
)

// redisPaidDatesCache backs PaidDatesCache with Redis.
type redisPaidDatesCache struct {
	client *redis.Client
}

// NewRedisPaidDatesCache wraps the Redis client as a PaidDatesCache
func NewRedisPaidDatesCache(client *redis.Client) PaidDatesCache {
	return &redisPaidDatesCache{client: client}
}

func (c *redisPaidDatesCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", err
	}
	return val, nil
}

func (c *redisPaidDatesCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisPaidDatesCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
