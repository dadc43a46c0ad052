package memory

import (
	"context"
	"sync"

	"patridefi/internal/storage"
)

// IndexerProgressStore is an in-memory implementation of
// storage.IndexerProgressStore.
type IndexerProgressStore struct {
	mu   sync.RWMutex
	data map[string]uint64 // consumer -> last applied seq
}

// NewIndexerProgressStore creates a new in-memory progress store.
func NewIndexerProgressStore() *IndexerProgressStore {
	return &IndexerProgressStore{
		data: make(map[string]uint64),
	}
}

// Compile-time interface check.
var _ storage.IndexerProgressStore = (*IndexerProgressStore)(nil)

// GetLastApplied returns the last applied sequence for a consumer.
func (s *IndexerProgressStore) GetLastApplied(_ context.Context, consumer string) (uint64, error) {
	if consumer == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, exists := s.data[consumer]
	if !exists {
		return 0, storage.ErrNotFound
	}
	return seq, nil
}

// SetLastApplied saves the last applied sequence for a consumer.
func (s *IndexerProgressStore) SetLastApplied(_ context.Context, consumer string, seq uint64) error {
	if consumer == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[consumer] = seq
	return nil
}
