package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is a hand-written, in-memory Ledger used in unit tests.
type MemoryLedger struct {
	mu      sync.Mutex
	entries []Entry

	// Optional error override; set in tests to simulate a database outage.
	RecordErr error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (m *MemoryLedger) Record(_ context.Context, e Entry) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of every recorded entry, in record order.
func (m *MemoryLedger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

var _ Ledger = (*MemoryLedger)(nil)
