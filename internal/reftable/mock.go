package reftable

import (
	"context"
	"sync"

	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
)

// MemoryStore is an in-memory Store for tests and dry runs.
type MemoryStore struct {
	SaveErr   error
	Name      string
	entries   []model.ReferenceEntry
	LoadCalls int
	SaveCalls int
	mu        sync.Mutex
	Missing   bool
}

// NewMemoryStore returns a store seeded with entries.
func NewMemoryStore(name string, entries ...model.ReferenceEntry) *MemoryStore {
	return &MemoryStore{Name: name, entries: append([]model.ReferenceEntry(nil), entries...)}
}

// Location implements Store.
func (m *MemoryStore) Location() string {
	return "memory://" + m.Name
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) ([]model.ReferenceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	if m.Missing {
		return nil, common.MissingResource(m.Location(), nil)
	}
	return append([]model.ReferenceEntry(nil), m.entries...), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, entries []model.ReferenceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.entries = append([]model.ReferenceEntry(nil), entries...)
	m.Missing = false
	return nil
}

// Snapshot returns the stored rows.
func (m *MemoryStore) Snapshot() []model.ReferenceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ReferenceEntry(nil), m.entries...)
}
