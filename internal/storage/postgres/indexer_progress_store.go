package postgres

import (
	"context"
	"fmt"

	"patridefi/internal/storage"
)

// IndexerProgressStore implements storage.IndexerProgressStore using PostgreSQL.
type IndexerProgressStore struct {
	pool *Pool
}

// NewIndexerProgressStore creates a new IndexerProgressStore.
func NewIndexerProgressStore(pool *Pool) *IndexerProgressStore {
	return &IndexerProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IndexerProgressStore = (*IndexerProgressStore)(nil)

// GetLastApplied returns the last applied sequence for a consumer.
func (s *IndexerProgressStore) GetLastApplied(ctx context.Context, consumer string) (uint64, error) {
	if consumer == "" {
		return 0, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT last_applied_seq
		FROM indexer_progress
		WHERE consumer = $1
	`, consumer)

	var seq int64
	if err := row.Scan(&seq); err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get indexer progress: %w", err)
	}
	return uint64(seq), nil
}

// SetLastApplied saves the last applied sequence for a consumer.
func (s *IndexerProgressStore) SetLastApplied(ctx context.Context, consumer string, seq uint64) error {
	if consumer == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO indexer_progress (consumer, last_applied_seq, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (consumer) DO UPDATE
		SET last_applied_seq = EXCLUDED.last_applied_seq,
		    updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query, consumer, int64(seq))
	if err != nil {
		return fmt.Errorf("set indexer progress: %w", err)
	}
	return nil
}
