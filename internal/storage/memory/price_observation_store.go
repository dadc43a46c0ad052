package memory

import (
	"context"
	"sort"
	"sync"

	"patridefi/internal/storage"
)

// PriceObservationStore is an in-memory implementation of
// storage.PriceObservationStore.
type PriceObservationStore struct {
	mu   sync.RWMutex
	data []*storage.PriceObservation
}

// NewPriceObservationStore creates a new in-memory observation store.
func NewPriceObservationStore() *PriceObservationStore {
	return &PriceObservationStore{}
}

// Compile-time interface check.
var _ storage.PriceObservationStore = (*PriceObservationStore)(nil)

// InsertBulk appends observation rows.
func (s *PriceObservationStore) InsertBulk(_ context.Context, observations []*storage.PriceObservation) error {
	if len(observations) == 0 {
		return nil
	}
	for _, o := range observations {
		if o == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range observations {
		copy := *o
		s.data = append(s.data, &copy)
	}
	return nil
}

// GetByTimeRange retrieves observations within [start, end] inclusive,
// ordered by timestamp ASC.
func (s *PriceObservationStore) GetByTimeRange(_ context.Context, start, end int64) ([]*storage.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.PriceObservation
	for _, o := range s.data {
		if o.Timestamp >= start && o.Timestamp <= end {
			copy := *o
			out = append(out, &copy)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out, nil
}
