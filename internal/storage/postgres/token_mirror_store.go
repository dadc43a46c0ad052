package postgres

import (
	"context"
	"fmt"

	"patridefi/internal/storage"
)

// TokenMirrorStore implements storage.TokenMirrorStore using PostgreSQL.
type TokenMirrorStore struct {
	pool *Pool
}

// NewTokenMirrorStore creates a new TokenMirrorStore.
func NewTokenMirrorStore(pool *Pool) *TokenMirrorStore {
	return &TokenMirrorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMirrorStore = (*TokenMirrorStore)(nil)

// Upsert inserts or replaces the token's row, keyed by token id.
func (s *TokenMirrorStore) Upsert(ctx context.Context, t *storage.TokenMirror) error {
	if t == nil || t.TokenID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_mirror (
			token_id, recipient, supabase_id, gold_price, quality, piece_value, minted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_id) DO UPDATE
		SET recipient = EXCLUDED.recipient,
		    supabase_id = EXCLUDED.supabase_id,
		    gold_price = EXCLUDED.gold_price,
		    quality = EXCLUDED.quality,
		    piece_value = EXCLUDED.piece_value,
		    minted_at = EXCLUDED.minted_at
	`

	_, err := s.pool.Exec(ctx, query,
		int64(t.TokenID),
		t.To,
		t.SupabaseID,
		t.GoldPrice,
		int16(t.Quality),
		int64(t.PieceValue),
		t.MintedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert token mirror: %w", err)
	}
	return nil
}

// GetByID retrieves a row. Returns ErrNotFound if not exists.
func (s *TokenMirrorStore) GetByID(ctx context.Context, tokenID uint64) (*storage.TokenMirror, error) {
	if tokenID == 0 {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT token_id, recipient, supabase_id, gold_price, quality, piece_value, minted_at
		FROM token_mirror
		WHERE token_id = $1
	`, int64(tokenID))

	t, err := scanTokenMirror(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token mirror: %w", err)
	}
	return t, nil
}

// GetBySupabaseID retrieves all tokens linked to an off-ledger document,
// ordered by token id ASC.
func (s *TokenMirrorStore) GetBySupabaseID(ctx context.Context, supabaseID string) ([]*storage.TokenMirror, error) {
	if supabaseID == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT token_id, recipient, supabase_id, gold_price, quality, piece_value, minted_at
		FROM token_mirror
		WHERE supabase_id = $1
		ORDER BY token_id ASC
	`, supabaseID)
	if err != nil {
		return nil, fmt.Errorf("list token mirror: %w", err)
	}
	defer rows.Close()

	var out []*storage.TokenMirror
	for rows.Next() {
		t, err := scanTokenMirror(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token mirror: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTokenMirror(row rowScanner) (*storage.TokenMirror, error) {
	var (
		t          storage.TokenMirror
		tokenID    int64
		quality    int16
		pieceValue int64
	)
	err := row.Scan(&tokenID, &t.To, &t.SupabaseID, &t.GoldPrice, &quality, &pieceValue, &t.MintedAt)
	if err != nil {
		return nil, err
	}
	t.TokenID = uint64(tokenID)
	t.Quality = uint8(quality)
	t.PieceValue = uint64(pieceValue)
	return &t, nil
}
