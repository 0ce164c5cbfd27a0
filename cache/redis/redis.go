// Package redis stores preference slots through go-redis.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/heritage/cache"
)

const pingTimeout = 5 * time.Second

// Cache prefixes keys with "<name>:" so several slots can share a database.
type Cache struct {
	rdb    *redis.Client
	prefix string
	maxAge time.Duration
}

// New accepts redis:// and rediss:// DSNs and fails if the server does not answer a PING.
func New(opts ...cache.Option) (cache.RawCache, error) {
	o := cache.NewOptions(opts...)

	parsed, err := redis.ParseURL(o.DSN)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(parsed)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err = rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(err, rdb.Close())
	}

	c := &Cache{rdb: rdb, maxAge: o.MaxAge}
	if o.Name != "" {
		c.prefix = o.Name + ":"
	}
	return c, nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set uses the configured max age when ttl is zero.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.maxAge
	}
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.prefix+key).Result()
	return n > 0, err
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
