package preference

import (
	"context"

	"github.com/pitabwire/heritage/cache"
)

// DefaultKey names the durable slot holding the language code.
const DefaultKey = "language"

// Slot is single-key durable storage for the preference.
type Slot interface {
	// Get returns the stored value and whether one exists.
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, value string) error
}

type cacheSlot struct {
	raw cache.RawCache
	key string
}

// NewCacheSlot stores the preference under key in any cache backend. An empty
// key means DefaultKey. Entries never expire unless the backend has a max age.
func NewCacheSlot(raw cache.RawCache, key string) Slot {
	if key == "" {
		key = DefaultKey
	}
	return &cacheSlot{raw: raw, key: key}
}

func (s *cacheSlot) Get(ctx context.Context) (string, bool, error) {
	value, found, err := s.raw.Get(ctx, s.key)
	if err != nil || !found {
		return "", false, err
	}
	return string(value), true, nil
}

func (s *cacheSlot) Set(ctx context.Context, value string) error {
	return s.raw.Set(ctx, s.key, []byte(value), 0)
}
