package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "jobintel:budget:"
	// A month key outlives its month so late readers still see the final count.
	keyTTL = 40 * 24 * time.Hour
)

// RedisCounter shares the monthly count between processes.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) key(month string) string {
	return c.prefix + month
}

func (c *RedisCounter) Get(ctx context.Context, month string) (int, error) {
	n, err := c.client.Get(ctx, c.key(month)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading budget counter: %w", err)
	}
	return n, nil
}

func (c *RedisCounter) Incr(ctx context.Context, month string) (int, error) {
	key := c.key(month)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incrementing budget counter: %w", err)
	}

	return int(incr.Val()), nil
}

func (c *RedisCounter) Reset(ctx context.Context, month string) error {
	if err := c.client.Del(ctx, c.key(month)).Err(); err != nil {
		return fmt.Errorf("resetting budget counter: %w", err)
	}
	return nil
}
