package service

import (
	"context"
	"slices"
	"sync"

	"github.com/raphaelgruber/prodscout/internal/models"
)

// MemoryStore is a process-lifetime KnowledgeStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.ProductRecord
	ids     map[string]struct{}
}

// NewMemoryStore creates an empty store, optionally seeded with records.
// Seed records with duplicate ids keep their first occurrence.
func NewMemoryStore(seed ...models.ProductRecord) *MemoryStore {
	s := &MemoryStore{ids: make(map[string]struct{})}
	s.insert(seed)
	return s
}

// List returns a copy of all records in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]models.ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records), nil
}

// Insert appends unseen records, skipping ids already present (including
// duplicates within records itself).
func (s *MemoryStore) Insert(_ context.Context, records []models.ProductRecord) ([]models.ProductRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(records), nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// insert must be called with the write lock held (or before publication).
func (s *MemoryStore) insert(records []models.ProductRecord) []models.ProductRecord {
	inserted := make([]models.ProductRecord, 0, len(records))
	for _, r := range records {
		if _, ok := s.ids[r.ProductID]; ok {
			continue
		}
		s.ids[r.ProductID] = struct{}{}
		s.records = append(s.records, r)
		inserted = append(inserted, r)
	}
	return inserted
}
