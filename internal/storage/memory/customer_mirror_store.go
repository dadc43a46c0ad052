package memory

import (
	"context"
	"sort"
	"sync"

	"patridefi/internal/storage"
)

// CustomerMirrorStore is an in-memory implementation of
// storage.CustomerMirrorStore.
type CustomerMirrorStore struct {
	mu   sync.RWMutex
	data map[string]*storage.CustomerMirror // keyed by wallet
}

// NewCustomerMirrorStore creates a new in-memory customer mirror store.
func NewCustomerMirrorStore() *CustomerMirrorStore {
	return &CustomerMirrorStore{
		data: make(map[string]*storage.CustomerMirror),
	}
}

// Compile-time interface check.
var _ storage.CustomerMirrorStore = (*CustomerMirrorStore)(nil)

// Upsert inserts or replaces the wallet's row.
func (s *CustomerMirrorStore) Upsert(_ context.Context, c *storage.CustomerMirror) error {
	if c == nil || c.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *c
	s.data[c.Wallet] = &copy
	return nil
}

// GetByWallet retrieves a row. Returns ErrNotFound if not exists.
func (s *CustomerMirrorStore) GetByWallet(_ context.Context, wallet string) (*storage.CustomerMirror, error) {
	if wallet == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.data[wallet]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *row
	return &copy, nil
}

// List retrieves all rows ordered by wallet ASC.
func (s *CustomerMirrorStore) List(_ context.Context) ([]*storage.CustomerMirror, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.CustomerMirror, 0, len(s.data))
	for _, row := range s.data {
		copy := *row
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Wallet < out[j].Wallet
	})
	return out, nil
}
