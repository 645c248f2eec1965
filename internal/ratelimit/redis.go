package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis counts in a shared Redis instance. The key expires with the window,
// so the reset is handled by Redis itself.
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, addr, pass string, db int) (*Redis, error) {
	const op = "ratelimit.NewRedis"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Consume(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	const op = "ratelimit.Redis.Consume"

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	return count <= int64(limit), nil
}

func (r *Redis) Close() {
	_ = r.client.Close()
}
