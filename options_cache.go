package heritage

import (
	"context"
	"fmt"
	"strings"

	"github.com/pitabwire/util"

	"github.com/pitabwire/heritage/cache"
	cacheredis "github.com/pitabwire/heritage/cache/redis"
	cachejetstream "github.com/pitabwire/heritage/cache/jetstream"
	cachesqlite "github.com/pitabwire/heritage/cache/sqlite"
	cachevalkey "github.com/pitabwire/heritage/cache/valkey"
	"github.com/pitabwire/heritage/preference"
)

// OpenCache opens the cache backend named by the scheme of dsn: mem://,
// sqlite://, redis:// (or rediss://), valkey:// and nats:// for a JetStream
// key/value bucket.
func OpenCache(ctx context.Context, dsn string, opts ...cache.Option) (cache.RawCache, error) {
	opts = append([]cache.Option{cache.WithDSN(dsn)}, opts...)

	var (
		raw cache.RawCache
		err error
	)
	switch scheme := cache.Scheme(dsn); scheme {
	case cache.SchemeMem:
		raw = cache.NewInMemoryCache()
	case cache.SchemeSQLite:
		raw, err = cachesqlite.New(opts...)
	case cache.SchemeRedis, "rediss":
		raw, err = cacheredis.New(opts...)
	case cache.SchemeValkey:
		raw, err = cachevalkey.New(opts...)
	case cache.SchemeNATS:
		raw, err = cachejetstream.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported preference store %q", redactDSN(dsn))
	}
	if err != nil {
		return nil, fmt.Errorf("open preference store %q: %w", redactDSN(dsn), err)
	}

	util.Log(ctx).WithField("store", redactDSN(dsn)).Debug("preference store opened")
	return raw, nil
}

// WithCache keeps the language preference in raw under the configured key.
// The caller keeps ownership of raw.
func WithCache(raw cache.RawCache) Option {
	return func(_ context.Context, s *Service) {
		key := preference.DefaultKey
		if s.configuration != nil {
			key = s.configuration.GetPreferenceKey()
		}
		s.slot = preference.NewCacheSlot(raw, key)
	}
}

// WithInMemoryCache keeps the preference for the lifetime of the process only.
func WithInMemoryCache() Option {
	return WithCache(cache.NewInMemoryCache())
}

// redactDSN drops credentials before a DSN is logged or returned in an error.
func redactDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn
	}
	rest := dsn[schemeEnd+3:]
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	return dsn[:schemeEnd+3] + "***@" + rest[at+1:]
}
