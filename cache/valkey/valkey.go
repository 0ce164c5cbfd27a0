// Package valkey stores preference slots on a Valkey (or Redis) server.
package valkey

import (
	"context"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/pitabwire/heritage/cache"
)

const pingTimeout = 5 * time.Second

// Cache namespaces every key with the configured cache name.
type Cache struct {
	client valkey.Client
	prefix string
	maxAge time.Duration
}

// New dials the server named by the DSN. valkey:// and valkeys:// are
// rewritten to their redis equivalents before parsing.
func New(opts ...cache.Option) (cache.RawCache, error) {
	o := cache.NewOptions(opts...)

	clientOpts, err := valkey.ParseURL(redisScheme(o.DSN))
	if err != nil {
		return nil, err
	}
	client, err := valkey.NewClient(clientOpts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err = client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, err
	}

	c := &Cache{client: client, maxAge: o.MaxAge}
	if o.Name != "" {
		c.prefix = o.Name + ":"
	}
	return c, nil
}

func redisScheme(dsn string) string {
	for from, to := range map[string]string{"valkey://": "redis://", "valkeys://": "rediss://"} {
		if rest, ok := strings.CutPrefix(dsn, from); ok {
			return to + rest
		}
	}
	return dsn
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build()).AsBytes()
	switch {
	case valkey.IsValkeyNil(err):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return value, true, nil
}

// Set falls back to the configured max age when ttl is zero. Expiry is
// rounded up to whole seconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.maxAge
	}

	set := c.client.B().Set().Key(c.prefix + key).Value(valkey.BinaryString(value))
	if ttl <= 0 {
		return c.client.Do(ctx, set.Build()).Error()
	}
	seconds := int64((ttl + time.Second - 1) / time.Second)
	return c.client.Do(ctx, set.ExSeconds(seconds).Build()).Error()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.prefix+key).Build()).Error()
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(c.prefix+key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Cache) Close() error {
	c.client.Close()
	return nil
}
