package profile

import (
	"context"
	"sync"
)

// MemoryRepository keeps records in-process. It backs DOCUMENT_STORE=memory
// for local runs without MongoDB.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Record)}
}

func (m *MemoryRepository) Find(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryRepository) Merge(_ context.Context, id string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, exists := m.records[id]
	if exists {
		// created_at is written once, when the record is first stored.
		patch.CreatedAt = nil
	}
	patch.Apply(&rec)
	m.records[id] = rec
	return nil
}
