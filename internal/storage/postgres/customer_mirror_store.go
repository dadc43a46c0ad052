package postgres

import (
	"context"
	"fmt"

	"patridefi/internal/storage"
)

// CustomerMirrorStore implements storage.CustomerMirrorStore using PostgreSQL.
type CustomerMirrorStore struct {
	pool *Pool
}

// NewCustomerMirrorStore creates a new CustomerMirrorStore.
func NewCustomerMirrorStore(pool *Pool) *CustomerMirrorStore {
	return &CustomerMirrorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CustomerMirrorStore = (*CustomerMirrorStore)(nil)

// Upsert inserts or replaces the wallet's row.
func (s *CustomerMirrorStore) Upsert(ctx context.Context, c *storage.CustomerMirror) error {
	if c == nil || c.Wallet == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO customer_mirror (
			wallet, supabase_id, data_hash, total_piece_value, updated_at_seq
		) VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (wallet) DO UPDATE
		SET supabase_id = EXCLUDED.supabase_id,
		    data_hash = EXCLUDED.data_hash,
		    total_piece_value = EXCLUDED.total_piece_value,
		    updated_at_seq = EXCLUDED.updated_at_seq
	`

	_, err := s.pool.Exec(ctx, query,
		c.Wallet,
		c.SupabaseID,
		c.DataHash,
		c.TotalPieceValue,
		c.UpdatedAtSeq,
	)
	if err != nil {
		return fmt.Errorf("upsert customer mirror: %w", err)
	}
	return nil
}

// GetByWallet retrieves a row. Returns ErrNotFound if not exists.
func (s *CustomerMirrorStore) GetByWallet(ctx context.Context, wallet string) (*storage.CustomerMirror, error) {
	if wallet == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT wallet, supabase_id, data_hash, total_piece_value::text, updated_at_seq
		FROM customer_mirror
		WHERE wallet = $1
	`, wallet)

	var c storage.CustomerMirror
	err := row.Scan(&c.Wallet, &c.SupabaseID, &c.DataHash, &c.TotalPieceValue, &c.UpdatedAtSeq)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get customer mirror: %w", err)
	}
	return &c, nil
}

// List retrieves all rows ordered by wallet ASC.
func (s *CustomerMirrorStore) List(ctx context.Context) ([]*storage.CustomerMirror, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wallet, supabase_id, data_hash, total_piece_value::text, updated_at_seq
		FROM customer_mirror
		ORDER BY wallet ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list customer mirror: %w", err)
	}
	defer rows.Close()

	var out []*storage.CustomerMirror
	for rows.Next() {
		var c storage.CustomerMirror
		if err := rows.Scan(&c.Wallet, &c.SupabaseID, &c.DataHash, &c.TotalPieceValue, &c.UpdatedAtSeq); err != nil {
			return nil, fmt.Errorf("scan customer mirror: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
