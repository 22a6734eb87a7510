package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter реализует Counter поверх INCR + PEXPIRE в одном pipeline.
// INCR в Redis атомарен, так что увеличение-и-чтение консистентно
// между любым числом планировщиков.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	// NX: expiry ставится один раз при создании ключа, не двигается инкрементами
	pipe.ExpireNX(ctx, key, expiry)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ratelimit: incr %s: %w", key, err)
	}
	return incr.Val(), nil
}
