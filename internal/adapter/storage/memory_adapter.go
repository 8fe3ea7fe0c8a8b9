package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/port"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero: never
}

// MemoryAdapter keeps values in process memory. Nothing survives a restart.
type MemoryAdapter struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryAdapter expires entries ttl after their last write, like the Redis
// adapter. A zero ttl keeps them until deleted. Expired entries read as
// missing; PurgeExpired releases their memory.
func NewMemoryAdapter(ttl time.Duration) *MemoryAdapter {
	return &MemoryAdapter{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryAdapter) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || m.expired(entry, m.now()) {
		return nil, port.ErrKeyNotFound
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *MemoryAdapter) Set(_ context.Context, key string, value []byte) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *MemoryAdapter) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// PurgeExpired drops expired entries and reports how many went.
func (m *MemoryAdapter) PurgeExpired() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for key, entry := range m.entries {
		if m.expired(entry, now) {
			delete(m.entries, key)
			purged++
		}
	}
	return purged
}

func (m *MemoryAdapter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryAdapter) expired(entry memoryEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
}
