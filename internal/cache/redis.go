package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"galleryapi/internal/config"
)

// NewRedis returns a connected Redis client.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// WindowCounter counts hits on a key inside a fixed window that expires on
// its own, so counters never accumulate for idle clients.
type WindowCounter interface {
	// Hit increments the counter for key and returns the new count and the
	// time left until the window resets.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisWindowCounter keeps window counters in Redis with a TTL.
type RedisWindowCounter struct {
	client redis.Cmdable
	prefix string
}

// NewRedisWindowCounter creates a WindowCounter that stores keys under prefix.
func NewRedisWindowCounter(client redis.Cmdable, prefix string) *RedisWindowCounter {
	return &RedisWindowCounter{client: client, prefix: prefix}
}

// Key is the Redis key used for a client key.
func (c *RedisWindowCounter) Key(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisWindowCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := c.Key(key)
	count, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, k, window).Err(); err != nil {
			return count, window, err
		}
		return count, window, nil
	}
	ttl, err := c.client.TTL(ctx, k).Result()
	if err != nil {
		return count, window, err
	}
	if ttl < 0 {
		// The expire after the first hit was lost; re-arm it.
		_ = c.client.Expire(ctx, k, window).Err()
		ttl = window
	}
	return count, ttl, nil
}
