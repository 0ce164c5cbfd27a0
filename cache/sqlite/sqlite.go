// Package sqlite keeps cache entries in a single SQLite table so they survive
// process restarts without a cache server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/pitabwire/heritage/cache"
)

const (
	defaultTable = "cache_entries"
	memoryPath   = ":memory:"
)

//nolint:gochecknoglobals // compiled once
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Cache is a SQLite-backed cache implementation.
type Cache struct {
	db     *sql.DB
	table  string
	maxAge time.Duration
}

// New opens (creating when needed) the database named by a sqlite:// DSN,
// for example sqlite:///var/lib/heritage/prefs.db or sqlite://:memory:.
func New(opts ...cache.Option) (cache.RawCache, error) {
	cacheOpts := cache.NewOptions(opts...)

	path, err := PathFromDSN(cacheOpts.DSN)
	if err != nil {
		return nil, err
	}

	table := defaultTable
	if cacheOpts.Name != "" {
		table = cacheOpts.Name
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid sqlite table name %q", table)
	}

	if path != memoryPath {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o750); mkErr != nil && !errors.Is(mkErr, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", mkErr)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: a :memory: database is per connection and the slot has a single writer
	db.SetMaxOpenConns(1)

	//nolint:gosec // table name is validated above
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS ` + table + ` (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s table: %w", table, err)
	}

	return &Cache{db: db, table: table, maxAge: cacheOpts.MaxAge}, nil
}

// PathFromDSN extracts the database path from a sqlite:// DSN.
func PathFromDSN(dsn string) (string, error) {
	trimmed := strings.TrimSpace(dsn)
	prefix := cache.SchemeSQLite + "://"
	if !strings.HasPrefix(strings.ToLower(trimmed), prefix) {
		return "", fmt.Errorf("not a sqlite dsn: %q", dsn)
	}
	path := trimmed[len(prefix):]
	if path == "" {
		return "", errors.New("sqlite dsn has no database path")
	}
	return path, nil
}

// Get retrieves an item from the cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt int64

	//nolint:gosec // table name is validated in New
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM `+c.table+` WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if expired(expiresAt) {
		return nil, false, c.Delete(ctx, key)
	}
	return value, true, nil
}

// Set sets an item in the cache with the specified TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.maxAge
	}

	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	if value == nil {
		value = []byte{}
	}

	//nolint:gosec // table name is validated in New
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO `+c.table+`(key, value, expires_at) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	return err
}

// Delete removes an item from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	//nolint:gosec // table name is validated in New
	_, err := c.db.ExecContext(ctx, `DELETE FROM `+c.table+` WHERE key = ?`, key)
	return err
}

// Exists checks if a key exists in the cache.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func expired(expiresAt int64) bool {
	return expiresAt > 0 && time.Now().UnixNano() > expiresAt
}
