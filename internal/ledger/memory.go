package ledger

import (
	"context"
	"sync"

	"RedditMonitor/internal/ports"
)

// MemoryLedger keeps ids in process only. Saves counts how many checkpoints happened.
type MemoryLedger struct {
	mu    sync.Mutex
	max   int
	set   *orderedSet
	saves int
}

var _ ports.Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger seeds an in-memory ledger.
func NewMemoryLedger(max int, seed ...string) *MemoryLedger {
	return &MemoryLedger{max: max, set: newOrderedSet(seed...)}
}

// Load returns a snapshot of the held ids.
func (m *MemoryLedger) Load(context.Context) map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.snapshot()
}

// Record appends unseen ids.
func (m *MemoryLedger) Record(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set.add(ids...)
}

// Save applies the size bound.
func (m *MemoryLedger) Save(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set.trim(m.max)
	m.saves++
	return nil
}

// Len reports the number of ids currently held.
func (m *MemoryLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.set.order)
}

// IDs returns the held ids oldest first.
func (m *MemoryLedger) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.ids()
}

// Saves returns how many times Save was called.
func (m *MemoryLedger) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
