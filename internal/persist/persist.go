// Package persist defines the key-value contract used for save data and an
// in-memory implementation. Backends with real durability live in the
// redisstore and sqlitestore subpackages.
package persist

import (
	"errors"
	"sync"
)

// ErrClosed is returned when flushing a store that has been closed.
var ErrClosed = errors.New("persist: store closed")

// Store is an integer key-value store with explicit flush.
// Reads never fail: a missing or unreadable key yields the default.
// Writes are visible to later reads immediately and reach durable storage
// on Flush.
type Store interface {
	GetInt(key string, def int) int
	SetInt(key string, value int)
	Flush() error
}

// MemoryStore keeps values in a map. It is the store used by tests and by
// servers configured with the memory driver.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string]int
	flushes int
}

// NewMemoryStore creates a memory store, optionally seeded with values.
func NewMemoryStore(seed map[string]int) *MemoryStore {
	values := make(map[string]int, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &MemoryStore{values: values}
}

// GetInt returns the stored value or def.
func (m *MemoryStore) GetInt(key string, def int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	return def
}

// SetInt stores value under key.
func (m *MemoryStore) SetInt(key string, value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Flush counts the call; there is nothing to write.
func (m *MemoryStore) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Flushes returns how many times Flush was called.
func (m *MemoryStore) Flushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}

// Snapshot returns a copy of every stored value.
func (m *MemoryStore) Snapshot() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
