// Package eventlog is the append-only record of everything the core
// commits: customer registrations and updates, minted tokens, created
// positions. The log is the source of truth for downstream consumers:
// the indexer mirrors it into query stores, and the core can rebuild its
// in-memory state by replaying it from the start.
package eventlog

import (
	"context"
	"errors"

	"patridefi/internal/domain"
)

var (
	// ErrClosed is returned after a log has been closed.
	ErrClosed = errors.New("eventlog: log is closed")

	// ErrInvalidInput is returned for nil or empty append batches.
	ErrInvalidInput = errors.New("eventlog: invalid input")
)

// Log is an append-only, strictly ordered event store. Append assigns
// contiguous sequence numbers starting at 1 and commits the whole batch
// atomically: either every event in the batch becomes readable or none
// does.
type Log interface {
	// Append stamps each event with the next sequence number and the
	// current schema version, then commits the batch atomically.
	Append(ctx context.Context, events []*domain.Event) error

	// ReadFrom returns up to limit events with Seq >= fromSeq, in
	// sequence order. A limit <= 0 means no limit.
	ReadFrom(ctx context.Context, fromSeq uint64, limit int) ([]*domain.Event, error)

	// LastSeq returns the sequence number of the newest event, or 0 for
	// an empty log.
	LastSeq(ctx context.Context) (uint64, error)
}
