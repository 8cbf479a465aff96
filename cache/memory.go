package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store backed by go-cache. Expired items are
// purged by a background sweep; eviction is passive, checked on access.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates a store with the given default TTL and sweep
// interval.
func NewMemoryStore(defaultTTL, sweepInterval time.Duration) *MemoryStore {
	return &MemoryStore{c: gocache.New(defaultTTL, sweepInterval)}
}

// Set stores a value. A non-positive TTL uses the store's default.
func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

// Get returns the value and whether it was present and unexpired.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, found := m.c.Get(key)
	if !found {
		return "", false, nil
	}
	return v.(string), true, nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// ItemCount returns the number of stored items, including any expired items
// the sweep has not yet removed.
func (m *MemoryStore) ItemCount(_ context.Context) (int, error) {
	return m.c.ItemCount(), nil
}
