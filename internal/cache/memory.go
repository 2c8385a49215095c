package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Compile-time check that MemoryCache implements Store.
var _ Store = (*MemoryCache)(nil)

type memoryEntry struct {
	data   []byte
	stored time.Time
}

// MemoryCache is a bounded in-process store. Entries expire after ttl and the
// least recently used entry is evicted once capacity is reached.
type MemoryCache struct {
	items *ttlcache.Cache[string, memoryEntry]
}

// NewMemoryCache creates a MemoryCache. A capacity of zero means unbounded,
// a ttl of zero means entries never expire on their own.
func NewMemoryCache(capacity uint64, ttl time.Duration) *MemoryCache {
	opts := []ttlcache.Option[string, memoryEntry]{
		ttlcache.WithDisableTouchOnHit[string, memoryEntry](),
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, memoryEntry](ttl))
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, memoryEntry](capacity))
	}

	return &MemoryCache{items: ttlcache.New[string, memoryEntry](opts...)}
}

// Get returns a copy of the stored value.
func (m *MemoryCache) Get(_ context.Context, key string, maxAge time.Duration) ([]byte, error) {
	item := m.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrMiss
	}
	entry := item.Value()
	if expired(entry.stored, maxAge) {
		return nil, ErrMiss
	}
	return append([]byte(nil), entry.data...), nil
}

// Put stores a copy of data.
func (m *MemoryCache) Put(_ context.Context, key string, data []byte) error {
	m.items.Set(key, memoryEntry{
		data:   append([]byte(nil), data...),
		stored: time.Now(),
	}, ttlcache.DefaultTTL)
	return nil
}

// Len returns the number of entries, expired ones included until they are
// evicted.
func (m *MemoryCache) Len() int {
	return m.items.Len()
}
