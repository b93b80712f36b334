package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

const sweepEvery = 1024

type memoryEntry struct {
	value   []byte
	count   int64
	expires time.Time
}

// MemoryStore is a process-local Store. Every operation holds one mutex, so
// increments and set-if-absent are atomic within the process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	writes  int
	now     func() time.Time
}

func NewMemory() *MemoryStore {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok || e.value == nil {
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.put(key, &memoryEntry{value: stored, expires: m.expiry(ttl)})
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.live(key)
	if !ok {
		e = &memoryEntry{expires: now.Add(window)}
		m.put(key, e)
	}
	e.count++
	return e.count, e.expires.Sub(now), nil
}

func (m *MemoryStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.put(key, &memoryEntry{value: []byte("1"), expires: m.expiry(ttl)})
	return true, nil
}

// Len reports the number of unexpired keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	return len(m.entries)
}

// live returns the entry for key, dropping it when expired. Caller holds mu.
func (m *MemoryStore) live(key string) (*memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

func (m *MemoryStore) put(key string, e *memoryEntry) {
	m.entries[key] = e
	m.writes++
	if m.writes%sweepEvery == 0 {
		m.sweep()
	}
}

func (m *MemoryStore) sweep() {
	now := m.now()
	for key, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, key)
		}
	}
}

func (m *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
