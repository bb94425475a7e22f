package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper implements Deduper on a shared Redis instance.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper from a Redis URL
// (e.g. "redis://localhost:6379/0").
func NewRedisDeduper(url string, ttl time.Duration) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDeduper{client: redis.NewClient(opts), ttl: ttl}, nil
}

// NewRedisDeduperFromClient wraps an existing client. Used by tests.
func NewRedisDeduperFromClient(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// FirstDelivery performs SET NX on "dedupe:{consumer}:{eventID}".
// A Redis failure reports the delivery as first (fail open) alongside the
// error so callers can log it.
func (d *RedisDeduper) FirstDelivery(ctx context.Context, consumer, eventID string) (bool, error) {
	key := fmt.Sprintf("dedupe:%s:%s", consumer, eventID)
	ok, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return true, fmt.Errorf("dedupe check for %s: %w", key, err)
	}
	return ok, nil
}

// Close releases the underlying Redis connection.
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}
