// Package replay rebuilds the core's in-memory state from the event log.
// The log is the source of truth: after a restart, the coordinator and
// ledger are reconstructed by applying every event in sequence order.
package replay

import (
	"context"
	"fmt"

	"patridefi/internal/coordinator"
	"patridefi/internal/domain"
	"patridefi/internal/eventlog"
	"patridefi/internal/ledger"
)

// batchSize bounds memory while streaming the log.
const batchSize = 1_000

// Restore streams the whole log into a freshly constructed coordinator
// and ledger. It returns the number of events applied.
func Restore(ctx context.Context, log eventlog.Log, coord *coordinator.Coordinator, led *ledger.Ledger) (uint64, error) {
	var applied uint64
	next := uint64(1)

	for {
		events, err := log.ReadFrom(ctx, next, batchSize)
		if err != nil {
			return applied, fmt.Errorf("read events from seq %d: %w", next, err)
		}
		if len(events) == 0 {
			return applied, nil
		}

		for _, ev := range events {
			if ev.Seq != next {
				return applied, fmt.Errorf("event log gap: expected seq %d, got %d", next, ev.Seq)
			}
			if ev.SchemaVersion > domain.EventSchemaVersion {
				return applied, fmt.Errorf("event seq %d has unsupported schema version %d", ev.Seq, ev.SchemaVersion)
			}

			if ev.Type == domain.EventTypeGoldTokenMinted {
				if err := led.ApplyMinted(ev.GoldTokenMinted); err != nil {
					return applied, fmt.Errorf("apply minted event seq %d: %w", ev.Seq, err)
				}
			} else {
				if err := coord.Apply(ev); err != nil {
					return applied, fmt.Errorf("apply event seq %d: %w", ev.Seq, err)
				}
			}

			applied++
			next++
		}
	}
}
