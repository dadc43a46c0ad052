package clickhouse

import (
	"context"
	"fmt"

	"patridefi/internal/storage"
)

// PriceObservationStore implements storage.PriceObservationStore using ClickHouse.
type PriceObservationStore struct {
	conn *Conn
}

// NewPriceObservationStore creates a new PriceObservationStore.
func NewPriceObservationStore(conn *Conn) *PriceObservationStore {
	return &PriceObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceObservationStore = (*PriceObservationStore)(nil)

// InsertBulk appends observation rows. The sink is append-only.
func (s *PriceObservationStore) InsertBulk(ctx context.Context, observations []*storage.PriceObservation) error {
	if len(observations) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_observations (
			timestamp_ms, wallet, gold_price, pieces, batch_value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range observations {
		err = batch.Append(
			uint64(o.Timestamp), o.Wallet, o.GoldPrice,
			o.Pieces, o.BatchValue,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves observations within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *PriceObservationStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*storage.PriceObservation, error) {
	query := `
		SELECT timestamp_ms, wallet, gold_price, pieces, batch_value
		FROM price_observations
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var out []*storage.PriceObservation
	for rows.Next() {
		var (
			o           storage.PriceObservation
			timestampMs uint64
		)
		err := rows.Scan(&timestampMs, &o.Wallet, &o.GoldPrice, &o.Pieces, &o.BatchValue)
		if err != nil {
			return nil, fmt.Errorf("scan price observation row: %w", err)
		}
		o.Timestamp = int64(timestampMs)
		out = append(out, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price observation rows: %w", err)
	}

	return out, nil
}
