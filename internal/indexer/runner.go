// Package indexer tails the event log and mirrors it into query stores.
// It is a downstream consumer: the log is the source of truth, and the
// mirror rows are derived state that can always be rebuilt by replaying
// the log from the start.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/holiman/uint256"

	"patridefi/internal/domain"
	"patridefi/internal/eventlog"
	"patridefi/internal/observability"
	"patridefi/internal/storage"
)

// ErrSequenceGap is returned when the log returns events that do not
// continue from the last applied sequence.
var ErrSequenceGap = errors.New("indexer: sequence gap in event log")

// Runner consumes the event log in order and upserts mirror rows.
// Progress is persisted at flush points, so a restart re-reads at most
// the events since the last flush; the per-wallet sequence guard makes
// re-applying that prefix a no-op.
type Runner struct {
	log          eventlog.Log
	customers    storage.CustomerMirrorStore
	tokens       storage.TokenMirrorStore
	progress     storage.IndexerProgressStore
	observations storage.PriceObservationStore
	consumer     string
	pollInterval time.Duration
	batchLimit   int
	logger       *log.Logger
	metrics      *observability.Metrics

	appliedSeq uint64
	flushedSeq uint64
	pending    *batchObservation
}

// batchObservation accumulates one mint batch between customer events.
type batchObservation struct {
	timestamp  int64
	wallet     string
	goldPrice  int64
	pieces     uint32
	batchValue uint64
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Log          eventlog.Log
	Customers    storage.CustomerMirrorStore
	Tokens       storage.TokenMirrorStore
	Progress     storage.IndexerProgressStore
	Observations storage.PriceObservationStore // optional analytics sink
	Consumer     string                        // default "mirror"
	PollInterval time.Duration                 // default 500ms
	BatchLimit   int                           // default 1000
	Logger       *log.Logger
	Metrics      *observability.Metrics // optional
}

// NewRunner creates a new indexer runner.
func NewRunner(opts RunnerOptions) *Runner {
	consumer := opts.Consumer
	if consumer == "" {
		consumer = "mirror"
	}

	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = 500 * time.Millisecond
	}

	batchLimit := opts.BatchLimit
	if batchLimit == 0 {
		batchLimit = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		log:          opts.Log,
		customers:    opts.Customers,
		tokens:       opts.Tokens,
		progress:     opts.Progress,
		observations: opts.Observations,
		consumer:     consumer,
		pollInterval: pollInterval,
		batchLimit:   batchLimit,
		logger:       logger,
		metrics:      opts.Metrics,
	}
}

// Run consumes the log until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.resume(ctx); err != nil {
		return err
	}
	r.logger.Printf("Indexer started, consumer: %s, resuming after seq %d", r.consumer, r.appliedSeq)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		caughtUp, err := r.CatchUp(ctx)
		if err != nil {
			return err
		}
		if caughtUp {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// Sync resumes from the progress store and applies everything currently
// in the log, then returns. Used for one-shot catch-up.
func (r *Runner) Sync(ctx context.Context) error {
	if err := r.resume(ctx); err != nil {
		return err
	}
	for {
		caughtUp, err := r.CatchUp(ctx)
		if err != nil {
			return err
		}
		if caughtUp {
			return nil
		}
	}
}

// CatchUp reads and applies one chunk of events. It returns true once the
// tail of the log is reached, after flushing the pending batch and saving
// progress.
func (r *Runner) CatchUp(ctx context.Context) (bool, error) {
	events, err := r.log.ReadFrom(ctx, r.appliedSeq+1, r.batchLimit)
	if err != nil {
		r.countError("read")
		return false, fmt.Errorf("read event log: %w", err)
	}

	if len(events) == 0 {
		// Tail reached. A batch cut by the read limit closes early and
		// the remainder later becomes a continuation row; piece counts
		// and values still sum correctly across the fragments.
		if err := r.flush(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	for _, ev := range events {
		if ev.Seq != r.appliedSeq+1 {
			r.countError("gap")
			return false, fmt.Errorf("%w: expected seq %d, got %d", ErrSequenceGap, r.appliedSeq+1, ev.Seq)
		}
		if err := r.apply(ctx, ev); err != nil {
			return false, err
		}
		r.appliedSeq = ev.Seq
		if r.metrics != nil {
			r.metrics.IndexerEventsApplied.Inc()
		}
	}

	if len(events) < r.batchLimit {
		// Tail reached within this chunk.
		if err := r.flush(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// resume loads the last persisted position.
func (r *Runner) resume(ctx context.Context) error {
	seq, err := r.progress.GetLastApplied(ctx, r.consumer)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.appliedSeq = 0
			r.flushedSeq = 0
			return nil
		}
		r.countError("progress")
		return fmt.Errorf("load indexer progress: %w", err)
	}
	r.appliedSeq = seq
	r.flushedSeq = seq
	return nil
}

func (r *Runner) apply(ctx context.Context, ev *domain.Event) error {
	if ev.SchemaVersion > domain.EventSchemaVersion {
		r.logger.Printf("Skipping event seq %d with unsupported schema version %d", ev.Seq, ev.SchemaVersion)
		return nil
	}

	switch ev.Type {
	case domain.EventTypeCustomerRegistered:
		p := ev.CustomerRegistered
		if p == nil {
			r.countError("customer")
			return fmt.Errorf("indexer: event seq %d missing registered payload", ev.Seq)
		}
		if err := r.flush(ctx); err != nil {
			return err
		}
		r.startBatch(ev, p.Wallet)
		return r.applyCustomer(ctx, ev.Seq, p.Wallet, p.SupabaseID, p.DataHash)

	case domain.EventTypeCustomerUpdated:
		p := ev.CustomerUpdated
		if p == nil {
			r.countError("customer")
			return fmt.Errorf("indexer: event seq %d missing updated payload", ev.Seq)
		}
		if err := r.flush(ctx); err != nil {
			return err
		}
		r.startBatch(ev, p.Wallet)
		return r.applyCustomer(ctx, ev.Seq, p.Wallet, p.SupabaseID, p.DataHash)

	case domain.EventTypeGoldTokenMinted:
		return r.applyMinted(ctx, ev)

	case domain.EventTypeCustomerPositionCreated:
		return r.applyPosition(ctx, ev)

	default:
		r.logger.Printf("Skipping event seq %d with unknown type %q", ev.Seq, ev.Type)
		return nil
	}
}

// applyCustomer upserts the wallet row, preserving the running total.
// Events at or below the row's UpdatedAtSeq were already applied.
func (r *Runner) applyCustomer(ctx context.Context, seq uint64, wallet domain.Address, supabaseID, dataHash domain.Hash) error {
	row, err := r.customers.GetByWallet(ctx, wallet.String())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.countError("customer")
			return fmt.Errorf("load customer mirror: %w", err)
		}
		row = &storage.CustomerMirror{
			Wallet:          wallet.String(),
			TotalPieceValue: "0",
		}
	}
	if row.UpdatedAtSeq >= seq {
		return nil
	}

	row.SupabaseID = supabaseID.String()
	row.DataHash = dataHash.String()
	row.UpdatedAtSeq = seq

	if err := r.customers.Upsert(ctx, row); err != nil {
		r.countError("customer")
		return fmt.Errorf("upsert customer mirror: %w", err)
	}
	return nil
}

func (r *Runner) applyMinted(ctx context.Context, ev *domain.Event) error {
	p := ev.GoldTokenMinted
	if p == nil {
		r.countError("token")
		return fmt.Errorf("indexer: event seq %d missing minted payload", ev.Seq)
	}
	err := r.tokens.Upsert(ctx, &storage.TokenMirror{
		TokenID:    p.TokenID,
		To:         p.To.String(),
		SupabaseID: p.SupabaseID.String(),
		GoldPrice:  p.GoldPrice,
		Quality:    uint8(p.Quality),
		PieceValue: p.PieceValue,
		MintedAt:   ev.Timestamp,
	})
	if err != nil {
		r.countError("token")
		return fmt.Errorf("upsert token mirror: %w", err)
	}

	// A minted event with no open batch means the delimiting customer
	// event was consumed and flushed in an earlier pass. The remainder
	// becomes its own observation row so the batch still sums correctly.
	if r.pending == nil {
		r.pending = &batchObservation{timestamp: ev.Timestamp}
	}
	r.pending.goldPrice = p.GoldPrice
	r.pending.pieces++
	r.pending.batchValue += p.PieceValue
	return nil
}

// applyPosition adds the piece value to the wallet's running total.
func (r *Runner) applyPosition(ctx context.Context, ev *domain.Event) error {
	p := ev.CustomerPositionCreated
	if p == nil {
		r.countError("position")
		return fmt.Errorf("indexer: event seq %d missing position payload", ev.Seq)
	}

	// Attribute a continuation fragment to the wallet of its positions.
	if r.pending != nil && r.pending.wallet == "" {
		r.pending.wallet = p.Wallet.String()
	}

	row, err := r.customers.GetByWallet(ctx, p.Wallet.String())
	if err != nil {
		r.countError("position")
		return fmt.Errorf("load customer mirror for position: %w", err)
	}
	if row.UpdatedAtSeq >= ev.Seq {
		return nil
	}

	total, err := uint256.FromDecimal(row.TotalPieceValue)
	if err != nil {
		r.countError("position")
		return fmt.Errorf("parse total piece value %q: %w", row.TotalPieceValue, err)
	}
	total.Add(total, uint256.NewInt(p.PieceValue))

	row.TotalPieceValue = total.Dec()
	row.UpdatedAtSeq = ev.Seq

	if err := r.customers.Upsert(ctx, row); err != nil {
		r.countError("position")
		return fmt.Errorf("upsert customer mirror for position: %w", err)
	}
	return nil
}

func (r *Runner) startBatch(ev *domain.Event, wallet domain.Address) {
	r.pending = &batchObservation{
		timestamp: ev.Timestamp,
		wallet:    wallet.String(),
	}
}

// flush writes the pending observation and persists progress. Progress
// only advances at flush points, so everything after it is re-read on
// restart and re-applied idempotently.
func (r *Runner) flush(ctx context.Context) error {
	if r.pending == nil && r.flushedSeq == r.appliedSeq {
		return nil
	}
	if r.pending != nil && r.pending.pieces > 0 && r.observations != nil {
		obs := &storage.PriceObservation{
			Timestamp:  r.pending.timestamp,
			Wallet:     r.pending.wallet,
			GoldPrice:  r.pending.goldPrice,
			Pieces:     r.pending.pieces,
			BatchValue: r.pending.batchValue,
		}
		if err := r.observations.InsertBulk(ctx, []*storage.PriceObservation{obs}); err != nil {
			r.countError("observation")
			return fmt.Errorf("insert price observation: %w", err)
		}
		if r.metrics != nil {
			r.metrics.ObservationsStored.Inc()
		}
	}
	r.pending = nil

	if err := r.progress.SetLastApplied(ctx, r.consumer, r.appliedSeq); err != nil {
		r.countError("progress")
		return fmt.Errorf("save indexer progress: %w", err)
	}
	r.flushedSeq = r.appliedSeq
	if r.metrics != nil {
		r.metrics.IndexerLastApplied.Set(float64(r.appliedSeq))
	}
	return nil
}

func (r *Runner) countError(stage string) {
	if r.metrics != nil {
		r.metrics.IndexerErrors.WithLabelValues(stage).Inc()
	}
}
