package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func (e memoryEntry) live(now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}

// InMemoryCache keeps entries for the lifetime of the process.
// Values are copied on the way in and out; expired keys are dropped lazily.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewInMemoryCache() RawCache {
	return &InMemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// lookup returns the live entry for key, removing it when it has expired.
func (c *InMemoryCache) lookup(key string) (memoryEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return memoryEntry{}, false
	}
	if entry.live(c.now()) {
		return entry, true
	}

	c.mu.Lock()
	if current, still := c.entries[key]; still && !current.live(c.now()) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return memoryEntry{}, false
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := c.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(entry.value), true, nil
}

func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: bytes.Clone(value)}
	if entry.value == nil {
		entry.value = []byte{}
	}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.lookup(key)
	return ok, nil
}

// Close drops every entry. The cache stays usable afterwards.
func (c *InMemoryCache) Close() error {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
	return nil
}
