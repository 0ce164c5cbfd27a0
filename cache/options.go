package cache

import (
	"net/url"
	"strings"
	"time"
)

// Supported backend schemes.
const (
	SchemeMem    = "mem"
	SchemeRedis  = "redis"
	SchemeValkey = "valkey"
	SchemeSQLite = "sqlite"
	SchemeNATS   = "nats"
)

// Option configures a cache backend.
type Option func(*Options)

// Options holds cache connection configuration.
type Options struct {
	DSN    string
	Name   string
	MaxAge time.Duration
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDSN sets the connection string of the backend.
func WithDSN(dsn string) Option {
	return func(o *Options) {
		o.DSN = dsn
	}
}

// WithName sets the table or namespace the backend keeps entries in.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithMaxAge returns an Option to configure the max age of cached entries.
func WithMaxAge(maxAge time.Duration) Option {
	return func(o *Options) {
		o.MaxAge = maxAge
	}
}

// Scheme returns the lower cased scheme of a DSN, or "" when it has none.
func Scheme(dsn string) string {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
