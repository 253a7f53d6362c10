package adapter

import (
	"context"
	"sync"
	"time"

	"zenchatty/internal/infrastructure/cache/port"
)

// MemoryCache is a process-local port.Cache used when no redis is configured
// and in tests. Expired keys are dropped lazily on access.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

var _ port.Cache = (*MemoryCache)(nil)

func (m *MemoryCache) liveLocked(key string) (memoryItem, bool) {
	it, ok := m.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !it.expiresAt.IsZero() && !m.now().Before(it.expiresAt) {
		delete(m.items, key)
		return memoryItem{}, false
	}
	return it, true
}

func (m *MemoryCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.liveLocked(key)
	if !ok {
		return "", port.ErrMiss
	}
	return it.value, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	m.items[key] = memoryItem{value: value, expiresAt: m.expiry(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) SetNX(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.liveLocked(key); ok {
		return false, nil
	}
	m.items[key] = memoryItem{value: value, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *MemoryCache) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.liveLocked(k); ok {
			delete(m.items, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryCache) Ping(context.Context) error { return nil }

func (m *MemoryCache) Close() error { return nil }
