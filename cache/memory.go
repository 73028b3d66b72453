package cache

import (
	"context"
	"sync"
	"time"
)

// Compile time check to ensure Memory satisfies the Store interface.
var _ Store = (*Memory)(nil)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process Store with per-entry TTL. Expired entries are
// dropped lazily on Get and swept whenever the map grows past the sweep
// threshold.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements the Store interface.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if e.expired(m.now()) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()

		return nil, false
	}

	return e.value, true
}

// Set implements the Store interface.
func (m *Memory) Set(_ context.Context, key string, b []byte, ttl time.Duration) error {
	e := memoryEntry{value: b}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	if len(m.entries) > 1 && len(m.entries)%1024 == 0 {
		m.sweepLocked()
	}
	m.mu.Unlock()

	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func (m *Memory) sweepLocked() {
	now := m.now()
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
}
