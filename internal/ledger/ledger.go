// Package ledger owns the per-token valuation records and the balance
// ledger, behind a single authorized-minter gate. Token records are
// immutable once minted; only balances may later move.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"patridefi/internal/domain"
	"patridefi/internal/eventlog"
	"patridefi/internal/valuation"
)

var (
	ErrNotMinter        = errors.New("ledger: caller is not the minter")
	ErrNotOwner         = errors.New("ledger: caller is not the owner")
	ErrInvalidRecipient = errors.New("ledger: invalid recipient")
	ErrReplayGap        = errors.New("ledger: replayed token id does not match next id")
)

// MintResult reports the outcome of a single mint.
type MintResult struct {
	TokenID    uint64
	PieceValue uint64
}

// Ledger is the ERC-1155-style token store. All mutating calls are
// serialized by an internal mutex; a call either fully commits (state
// and event log together) or leaves no trace.
type Ledger struct {
	mu sync.RWMutex

	owner   domain.Address
	minter  domain.Address
	baseURI string

	nextTokenID uint64
	tokens      map[uint64]domain.GoldToken
	balances    map[uint64]map[domain.Address]uint64

	log eventlog.Log
	now func() time.Time
}

// New creates a ledger owned by owner. Token ids start at 1.
func New(owner domain.Address, baseURI string, log eventlog.Log) *Ledger {
	return &Ledger{
		owner:       owner,
		baseURI:     baseURI,
		nextTokenID: 1,
		tokens:      make(map[uint64]domain.GoldToken),
		balances:    make(map[uint64]map[domain.Address]uint64),
		log:         log,
		now:         time.Now,
	}
}

// SetMinter replaces the authorized minter. Single slot, last writer
// wins; owner only.
func (l *Ledger) SetMinter(caller, minter domain.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return ErrNotOwner
	}
	l.minter = minter
	return nil
}

// IsMinter reports whether addr holds the minter slot.
func (l *Ledger) IsMinter(addr domain.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !addr.IsZero() && addr == l.minter
}

// SetBaseURI replaces the metadata base path. Owner only.
func (l *Ledger) SetBaseURI(caller domain.Address, baseURI string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return ErrNotOwner
	}
	l.baseURI = baseURI
	return nil
}

// URI returns the metadata address for a token: baseURI + id + ".json".
func (l *Ledger) URI(tokenID uint64) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseURI + strconv.FormatUint(tokenID, 10) + ".json"
}

// StagedMint is a mint that has been validated and priced but not yet
// committed or logged.
type StagedMint struct {
	Record domain.GoldToken
	To     domain.Address
}

// StageMintBatch validates a batch and assigns consecutive token ids
// starting at the current next id, without touching ledger state or the
// log. The ids become final only when the corresponding minted events
// are applied; the coordinator serializes mint calls, so staged ids
// cannot collide.
func (l *Ledger) StageMintBatch(caller, to domain.Address, supabaseID domain.Hash, goldPrice int64, weightsMg []uint64, qualities []domain.Quality) ([]StagedMint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if caller != l.minter || caller.IsZero() {
		return nil, ErrNotMinter
	}
	if to.IsZero() {
		return nil, ErrInvalidRecipient
	}
	if len(weightsMg) != len(qualities) {
		return nil, fmt.Errorf("ledger: %d weights for %d qualities", len(weightsMg), len(qualities))
	}

	staged := make([]StagedMint, 0, len(weightsMg))
	nextID := l.nextTokenID
	for i := range weightsMg {
		pieceValue, err := valuation.PieceValue(goldPrice, weightsMg[i], qualities[i])
		if err != nil {
			return nil, err
		}
		staged = append(staged, StagedMint{
			Record: domain.GoldToken{
				TokenID:    nextID,
				SupabaseID: supabaseID,
				Amount:     1,
				GoldPrice:  goldPrice,
				Quality:    qualities[i],
				PieceValue: pieceValue,
			},
			To: to,
		})
		nextID++
	}
	return staged, nil
}

// MintForCustomer allocates the next token id, freezes the valuation
// record, and credits the recipient with balance 1. The caller must hold
// the minter slot. The minted event is appended to the log before the
// in-memory state is touched, so a failed append aborts the mint cleanly.
func (l *Ledger) MintForCustomer(ctx context.Context, caller, to domain.Address, supabaseID domain.Hash, goldPrice int64, quality domain.Quality, weightMg uint64) (MintResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.minter || caller.IsZero() {
		return MintResult{}, ErrNotMinter
	}
	if to.IsZero() {
		return MintResult{}, ErrInvalidRecipient
	}

	pieceValue, err := valuation.PieceValue(goldPrice, weightMg, quality)
	if err != nil {
		return MintResult{}, err
	}

	tokenID := l.nextTokenID
	record := domain.GoldToken{
		TokenID:    tokenID,
		SupabaseID: supabaseID,
		Amount:     1,
		GoldPrice:  goldPrice,
		Quality:    quality,
		PieceValue: pieceValue,
	}

	ev := &domain.Event{
		Type:      domain.EventTypeGoldTokenMinted,
		Timestamp: l.now().UnixMilli(),
		GoldTokenMinted: &domain.GoldTokenMintedEvent{
			TokenID:    tokenID,
			To:         to,
			SupabaseID: supabaseID,
			GoldPrice:  goldPrice,
			Quality:    quality,
			PieceValue: pieceValue,
		},
	}
	if err := l.log.Append(ctx, []*domain.Event{ev}); err != nil {
		return MintResult{}, fmt.Errorf("append minted event: %w", err)
	}

	l.applyMint(record, to)
	return MintResult{TokenID: tokenID, PieceValue: pieceValue}, nil
}

// applyMint commits a mint to in-memory state. Callers hold l.mu.
func (l *Ledger) applyMint(record domain.GoldToken, to domain.Address) {
	l.tokens[record.TokenID] = record
	if l.balances[record.TokenID] == nil {
		l.balances[record.TokenID] = make(map[domain.Address]uint64)
	}
	l.balances[record.TokenID][to] += record.Amount
	l.nextTokenID = record.TokenID + 1
}

// ApplyMinted replays a minted event into the ledger without logging.
// Used when rebuilding state from the event log; token ids must arrive
// in mint order.
func (l *Ledger) ApplyMinted(ev *domain.GoldTokenMintedEvent) error {
	if ev == nil {
		return fmt.Errorf("ledger: nil minted event")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.TokenID != l.nextTokenID {
		return fmt.Errorf("%w: got %d, want %d", ErrReplayGap, ev.TokenID, l.nextTokenID)
	}

	l.applyMint(domain.GoldToken{
		TokenID:    ev.TokenID,
		SupabaseID: ev.SupabaseID,
		Amount:     1,
		GoldPrice:  ev.GoldPrice,
		Quality:    ev.Quality,
		PieceValue: ev.PieceValue,
	}, ev.To)
	return nil
}

// GoldToken returns the valuation record for a token id. A never-minted
// id yields the zero-valued sentinel, not an error.
func (l *Ledger) GoldToken(tokenID uint64) domain.GoldToken {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tokens[tokenID]
}

// BalanceOf returns addr's balance of a token id.
func (l *Ledger) BalanceOf(addr domain.Address, tokenID uint64) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[tokenID][addr]
}

// NextTokenID returns the id the next mint will use.
func (l *Ledger) NextTokenID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextTokenID
}

// Owner returns the ledger owner.
func (l *Ledger) Owner() domain.Address {
	return l.owner
}
