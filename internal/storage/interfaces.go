package storage

import "context"

// CustomerMirror is one row of the customer mirror table, maintained by
// the indexer from customer events. TotalPieceValue is the 8-decimal
// fixed-point total rendered as a decimal string, since it can exceed
// 64 bits.
type CustomerMirror struct {
	Wallet          string
	SupabaseID      string
	DataHash        string
	TotalPieceValue string
	UpdatedAtSeq    uint64 // log sequence of the last applied event
}

// TokenMirror is one row of the token mirror table, one per minted coin.
// Numeric fields are copied verbatim from the minted event; the metadata
// endpoint serves them unchanged.
type TokenMirror struct {
	TokenID    uint64
	To         string
	SupabaseID string
	GoldPrice  int64
	Quality    uint8
	PieceValue uint64
	MintedAt   int64 // unix milliseconds, from the minted event
}

// PriceObservation is one analytics row per mint batch: the oracle
// snapshot and what was minted against it.
type PriceObservation struct {
	Timestamp  int64 // unix milliseconds
	Wallet     string
	GoldPrice  int64
	Pieces     uint32
	BatchValue uint64 // sum of piece values in the batch
}

// CustomerMirrorStore mirrors customer records for query serving.
// Upserts are idempotent: re-applying the same log prefix converges to
// identical rows.
type CustomerMirrorStore interface {
	// Upsert inserts or replaces the wallet's row.
	Upsert(ctx context.Context, c *CustomerMirror) error

	// GetByWallet retrieves a row. Returns ErrNotFound if not exists.
	GetByWallet(ctx context.Context, wallet string) (*CustomerMirror, error)

	// List retrieves all rows ordered by wallet ASC.
	List(ctx context.Context) ([]*CustomerMirror, error)
}

// TokenMirrorStore mirrors minted-token records for query serving.
type TokenMirrorStore interface {
	// Upsert inserts or replaces the token's row, keyed by token id.
	Upsert(ctx context.Context, t *TokenMirror) error

	// GetByID retrieves a row. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tokenID uint64) (*TokenMirror, error)

	// GetBySupabaseID retrieves all tokens linked to an off-ledger
	// document, ordered by token id ASC.
	GetBySupabaseID(ctx context.Context, supabaseID string) ([]*TokenMirror, error)
}

// IndexerProgressStore persists the indexer's position in the event log,
// so restarts resume without reprocessing.
type IndexerProgressStore interface {
	// GetLastApplied returns the last applied sequence for a consumer.
	// Returns ErrNotFound if the consumer has no progress yet.
	GetLastApplied(ctx context.Context, consumer string) (uint64, error)

	// SetLastApplied saves the last applied sequence for a consumer.
	SetLastApplied(ctx context.Context, consumer string, seq uint64) error
}

// PriceObservationStore is the analytics sink for oracle snapshots.
type PriceObservationStore interface {
	// InsertBulk appends observation rows. The sink is append-only.
	InsertBulk(ctx context.Context, observations []*PriceObservation) error

	// GetByTimeRange retrieves observations within [start, end]
	// (inclusive, unix milliseconds), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*PriceObservation, error)
}
