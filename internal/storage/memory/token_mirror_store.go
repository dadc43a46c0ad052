package memory

import (
	"context"
	"sort"
	"sync"

	"patridefi/internal/storage"
)

// TokenMirrorStore is an in-memory implementation of
// storage.TokenMirrorStore.
type TokenMirrorStore struct {
	mu   sync.RWMutex
	data map[uint64]*storage.TokenMirror // keyed by token id
}

// NewTokenMirrorStore creates a new in-memory token mirror store.
func NewTokenMirrorStore() *TokenMirrorStore {
	return &TokenMirrorStore{
		data: make(map[uint64]*storage.TokenMirror),
	}
}

// Compile-time interface check.
var _ storage.TokenMirrorStore = (*TokenMirrorStore)(nil)

// Upsert inserts or replaces the token's row.
func (s *TokenMirrorStore) Upsert(_ context.Context, t *storage.TokenMirror) error {
	if t == nil || t.TokenID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *t
	s.data[t.TokenID] = &copy
	return nil
}

// GetByID retrieves a row. Returns ErrNotFound if not exists.
func (s *TokenMirrorStore) GetByID(_ context.Context, tokenID uint64) (*storage.TokenMirror, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.data[tokenID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *row
	return &copy, nil
}

// GetBySupabaseID retrieves all tokens for a document, ordered by token id ASC.
func (s *TokenMirrorStore) GetBySupabaseID(_ context.Context, supabaseID string) ([]*storage.TokenMirror, error) {
	if supabaseID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.TokenMirror
	for _, row := range s.data {
		if row.SupabaseID == supabaseID {
			copy := *row
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TokenID < out[j].TokenID
	})
	return out, nil
}
