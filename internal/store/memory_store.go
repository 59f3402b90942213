package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Entry is a stored value with the ttl it was written with.
type Entry struct {
	Value []byte
	TTL   time.Duration
}

// MemoryStore is a hand-written, in-memory Store used in unit tests.
// It records the ttl of every write instead of expiring keys, so tests can
// assert on expiry without waiting for it.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	writes  []string

	// Optional error overrides; set in tests to simulate failure paths.
	// SetErrFor fails only writes whose key has the given prefix.
	SetErr    error
	SetErrFor string
	GetErr    error
	PingErr   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetErr != nil && (m.SetErrFor == "" || strings.HasPrefix(key, m.SetErrFor)) {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := make([]byte, len(value))
	copy(clone, value)
	m.entries[key] = Entry{Value: clone, TTL: ttl}
	m.writes = append(m.writes, key)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Value, nil
}

func (m *MemoryStore) Ping(context.Context) error { return m.PingErr }

func (m *MemoryStore) Close() error { return nil }

// Lookup returns the stored value and ttl for key.
func (m *MemoryStore) Lookup(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

// Writes returns every key written, in write order.
func (m *MemoryStore) Writes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

var _ Store = (*MemoryStore)(nil)
