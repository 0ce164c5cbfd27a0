package cache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	tcvalkey "github.com/testcontainers/testcontainers-go/modules/valkey"

	"github.com/pitabwire/heritage/cache"
	cachejetstream "github.com/pitabwire/heritage/cache/jetstream"
	cacheredis "github.com/pitabwire/heritage/cache/redis"
	cachesqlite "github.com/pitabwire/heritage/cache/sqlite"
	cachevalkey "github.com/pitabwire/heritage/cache/valkey"
)

const (
	valkeyImage = "docker.io/valkey/valkey:8"
	natsImage   = "docker.io/library/nats:2.11"
)

// exerciseRawCache runs the behaviour every backend must share.
func exerciseRawCache(s *suite.Suite, raw cache.RawCache) {
	ctx := context.Background()

	tests := []struct {
		testName string
		key      string
		value    []byte
		ttl      time.Duration
	}{
		{"Simple value", "key1", []byte("value1"), 0},
		{"With TTL", "key2", []byte("value2"), 1 * time.Hour},
		{"Empty value", "key3", []byte{}, 0},
		{"Overwrite", "key1", []byte("pl"), 0},
	}

	for _, tt := range tests {
		s.Run(tt.testName, func() {
			s.Require().NoError(raw.Set(ctx, tt.key, tt.value, tt.ttl))

			value, found, err := raw.Get(ctx, tt.key)
			s.Require().NoError(err)
			s.True(found)
			s.Equal(tt.value, value)

			exists, err := raw.Exists(ctx, tt.key)
			s.Require().NoError(err)
			s.True(exists)
		})
	}

	s.Run("Missing key", func() {
		value, found, err := raw.Get(ctx, "missing")
		s.Require().NoError(err)
		s.False(found)
		s.Nil(value)

		exists, err := raw.Exists(ctx, "missing")
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("Delete", func() {
		s.Require().NoError(raw.Set(ctx, "gone", []byte("x"), 0))
		s.Require().NoError(raw.Delete(ctx, "gone"))

		_, found, err := raw.Get(ctx, "gone")
		s.Require().NoError(err)
		s.False(found)

		s.Require().NoError(raw.Delete(ctx, "never-there"))
	})

	s.Run("Expiry", func() {
		s.Require().NoError(raw.Set(ctx, "short", []byte("x"), time.Second))
		s.Eventually(func() bool {
			_, found, err := raw.Get(ctx, "short")
			return err == nil && !found
		}, 5*time.Second, 100*time.Millisecond)
	})
}

type LocalBackendSuite struct {
	suite.Suite
}

func TestLocalBackendSuite(t *testing.T) {
	suite.Run(t, new(LocalBackendSuite))
}

func (s *LocalBackendSuite) TestInMemory() {
	raw := cache.NewInMemoryCache()
	defer raw.Close()

	exerciseRawCache(&s.Suite, raw)
}

func (s *LocalBackendSuite) TestInMemoryCopiesValues() {
	ctx := context.Background()
	raw := cache.NewInMemoryCache()
	defer raw.Close()

	value := []byte("en")
	s.Require().NoError(raw.Set(ctx, "language", value, 0))
	value[0] = 'x'

	got, found, err := raw.Get(ctx, "language")
	s.Require().NoError(err)
	s.True(found)
	s.Equal([]byte("en"), got)

	got[0] = 'y'
	again, _, _ := raw.Get(ctx, "language")
	s.Equal([]byte("en"), again)

	s.Require().NoError(raw.Close())
	_, found, err = raw.Get(ctx, "language")
	s.Require().NoError(err)
	s.False(found)
}

func (s *LocalBackendSuite) TestSQLite() {
	dsn := "sqlite://" + filepath.Join(s.T().TempDir(), "nested", "cache.db")
	raw, err := cachesqlite.New(cache.WithDSN(dsn), cache.WithName("prefs"))
	s.Require().NoError(err)
	defer raw.Close()

	exerciseRawCache(&s.Suite, raw)
}

func (s *LocalBackendSuite) TestSQLiteSurvivesReopen() {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(s.T().TempDir(), "cache.db")

	first, err := cachesqlite.New(cache.WithDSN(dsn))
	s.Require().NoError(err)
	s.Require().NoError(first.Set(ctx, "language", []byte("pl"), 0))
	s.Require().NoError(first.Close())

	second, err := cachesqlite.New(cache.WithDSN(dsn))
	s.Require().NoError(err)
	defer second.Close()

	value, found, err := second.Get(ctx, "language")
	s.Require().NoError(err)
	s.True(found)
	s.Equal([]byte("pl"), value)
}

func (s *LocalBackendSuite) TestSQLiteMemory() {
	raw, err := cachesqlite.New(cache.WithDSN("sqlite://:memory:"))
	s.Require().NoError(err)
	defer raw.Close()

	s.Require().NoError(raw.Set(context.Background(), "k", []byte("v"), 0))
	exists, err := raw.Exists(context.Background(), "k")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *LocalBackendSuite) TestSQLiteRejectsBadInput() {
	_, err := cachesqlite.New(cache.WithDSN("redis://localhost:6379"))
	s.Error(err)

	_, err = cachesqlite.New(cache.WithDSN("sqlite://"))
	s.Error(err)

	_, err = cachesqlite.New(cache.WithDSN("sqlite://:memory:"), cache.WithName("drop table;"))
	s.Error(err)
}

func (s *LocalBackendSuite) TestOptionsAndScheme() {
	opts := cache.NewOptions(
		cache.WithDSN("redis://127.0.0.1:6379"),
		cache.WithName("bucket"),
		cache.WithMaxAge(5*time.Minute),
	)
	s.Equal("redis://127.0.0.1:6379", opts.DSN)
	s.Equal("bucket", opts.Name)
	s.Equal(5*time.Minute, opts.MaxAge)

	s.Equal(cache.SchemeRedis, cache.Scheme("REDIS://host:1"))
	s.Equal(cache.SchemeValkey, cache.Scheme("valkey://host:1"))
	s.Equal(cache.SchemeSQLite, cache.Scheme("sqlite:///tmp/x.db"))
	s.Equal(cache.SchemeMem, cache.Scheme("mem://"))
	s.Equal(cache.SchemeNATS, cache.Scheme("nats://host:4222"))
	s.Empty(cache.Scheme("plain-path"))
}

type ServerBackendSuite struct {
	suite.Suite

	dsn string
}

func TestServerBackendSuite(t *testing.T) {
	suite.Run(t, new(ServerBackendSuite))
}

func (s *ServerBackendSuite) SetupSuite() {
	testcontainers.SkipIfProviderIsNotHealthy(s.T())

	ctx := context.Background()
	container, err := tcvalkey.Run(ctx, valkeyImage)
	testcontainers.CleanupContainer(s.T(), container)
	s.Require().NoError(err)

	s.dsn, err = container.ConnectionString(ctx)
	s.Require().NoError(err)
	s.T().Logf("Valkey connection string: %s", s.dsn)
}

func (s *ServerBackendSuite) TestRedis() {
	raw, err := cacheredis.New(cache.WithDSN(s.dsn), cache.WithName("redis"))
	s.Require().NoError(err)
	defer raw.Close()

	exerciseRawCache(&s.Suite, raw)
}

func (s *ServerBackendSuite) TestValkey() {
	raw, err := cachevalkey.New(cache.WithDSN(s.dsn), cache.WithName("valkey"))
	s.Require().NoError(err)
	defer raw.Close()

	exerciseRawCache(&s.Suite, raw)
}

func (s *ServerBackendSuite) TestValkeySchemeIsAccepted() {
	dsn := "valkey://" + s.dsn[len("redis://"):]
	raw, err := cachevalkey.New(cache.WithDSN(dsn))
	s.Require().NoError(err)
	defer raw.Close()

	s.Require().NoError(raw.Set(context.Background(), "language", []byte("pl"), 0))
}

func (s *ServerBackendSuite) TestNamespacesDoNotClash() {
	ctx := context.Background()

	a, err := cacheredis.New(cache.WithDSN(s.dsn), cache.WithName("a"))
	s.Require().NoError(err)
	defer a.Close()

	b, err := cachevalkey.New(cache.WithDSN(s.dsn), cache.WithName("b"))
	s.Require().NoError(err)
	defer b.Close()

	s.Require().NoError(a.Set(ctx, "language", []byte("pl"), 0))
	_, found, err := b.Get(ctx, "language")
	s.Require().NoError(err)
	s.False(found)
}

type NATSBackendSuite struct {
	suite.Suite

	dsn string
}

func TestNATSBackendSuite(t *testing.T) {
	suite.Run(t, new(NATSBackendSuite))
}

func (s *NATSBackendSuite) SetupSuite() {
	testcontainers.SkipIfProviderIsNotHealthy(s.T())

	ctx := context.Background()
	container, err := tcnats.Run(ctx, natsImage, testcontainers.WithCmdArgs("--js"))
	testcontainers.CleanupContainer(s.T(), container)
	s.Require().NoError(err)

	s.dsn, err = container.ConnectionString(ctx)
	s.Require().NoError(err)
}

func (s *NATSBackendSuite) TestKeyValueBucket() {
	ctx := context.Background()

	raw, err := cachejetstream.New(cache.WithDSN(s.dsn), cache.WithName("prefs"))
	s.Require().NoError(err)
	defer raw.Close()

	_, found, err := raw.Get(ctx, "language")
	s.Require().NoError(err)
	s.False(found)

	s.Require().NoError(raw.Set(ctx, "language", []byte("en"), 0))
	s.Require().NoError(raw.Set(ctx, "language", []byte("pl"), 0))

	value, found, err := raw.Get(ctx, "language")
	s.Require().NoError(err)
	s.True(found)
	s.Equal([]byte("pl"), value)

	s.Require().NoError(raw.Delete(ctx, "language"))
	exists, err := raw.Exists(ctx, "language")
	s.Require().NoError(err)
	s.False(exists)
	s.NoError(raw.Delete(ctx, "never-there"))
}

func (s *NATSBackendSuite) TestBucketIsSharedBetweenConnections() {
	ctx := context.Background()

	first, err := cachejetstream.New(cache.WithDSN(s.dsn), cache.WithName("shared"))
	s.Require().NoError(err)
	defer first.Close()
	s.Require().NoError(first.Set(ctx, "language", []byte("pl"), 0))

	second, err := cachejetstream.New(cache.WithDSN(s.dsn), cache.WithName("shared"))
	s.Require().NoError(err)
	defer second.Close()

	value, found, err := second.Get(ctx, "language")
	s.Require().NoError(err)
	s.True(found)
	s.Equal([]byte("pl"), value)
}

func (s *NATSBackendSuite) TestUnreachableServer() {
	_, err := cachejetstream.New(cache.WithDSN("nats://127.0.0.1:1"))
	s.Error(err)
}
