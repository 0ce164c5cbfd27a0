// Package jetstream keeps cache entries in a NATS JetStream key/value bucket.
package jetstream

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pitabwire/heritage/cache"
)

const defaultBucket = "heritage"

// Cache stores entries in one KV bucket; per-entry TTLs are not supported,
// the bucket TTL comes from cache.WithMaxAge.
type Cache struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// New connects to the nats:// DSN and opens, or creates, the bucket named by
// cache.WithName.
func New(opts ...cache.Option) (cache.RawCache, error) {
	cacheOpts := cache.NewOptions(opts...)
	bucket := cacheOpts.Name
	if bucket == "" {
		bucket = defaultBucket
	}

	conn, err := nats.Connect(cacheOpts.DSN)
	if err != nil {
		return nil, err
	}

	kv, err := openBucket(conn, bucket, cacheOpts.MaxAge)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Cache{conn: conn, kv: kv}, nil
}

func openBucket(conn *nats.Conn, bucket string, ttl time.Duration) (nats.KeyValue, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, err
	}

	kv, err := js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket, TTL: ttl})
	if err != nil {
		var apiErr *nats.APIError
		if !errors.As(err, &apiErr) || apiErr.ErrorCode != nats.JSErrCodeStreamNameInUse {
			return nil, err
		}
		// created elsewhere, possibly with another TTL
		kv, err = js.KeyValue(bucket)
		if err != nil {
			return nil, err
		}
	}

	if _, err = kv.Status(); err != nil {
		return nil, err
	}
	return kv, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(key, value)
	return err
}

func (c *Cache) Delete(_ context.Context, key string) error {
	err := c.kv.Delete(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

// Close drains nothing; pending puts are synchronous.
func (c *Cache) Close() error {
	c.conn.Close()
	return nil
}
