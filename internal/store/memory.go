package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the last saved snapshot in memory only.
type MemoryStore struct {
	mu    sync.Mutex
	last  Snapshot
	saves int
}

// LoadAll returns the last saved snapshot.
func (m *MemoryStore) LoadAll(context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

// SaveAll records snap.
func (m *MemoryStore) SaveAll(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = snap
	m.saves++
	return nil
}

// Saves counts SaveAll calls.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
