// Package cache provides the key/value backends the preference slot is
// persisted in.
package cache

import (
	"context"
	"time"
)

// RawCache stores opaque byte values by key. Implementations must be safe
// for concurrent use. A missing key is reported through the bool result,
// never as an error.
type RawCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set keeps value until deleted when ttl is zero, unless the backend
	// was configured with a max age.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}
