// Package coordinator orchestrates customer registration and batch coin
// minting: it validates the batch, snapshots the oracle price once,
// drives the ledger mint per coin, and accumulates each customer's
// running total. It is the only component allowed to hold the ledger's
// minter slot.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"patridefi/internal/domain"
	"patridefi/internal/eventlog"
	"patridefi/internal/ledger"
	"patridefi/internal/oracle"
	"patridefi/internal/valuation"
)

var (
	ErrNotAdmin          = errors.New("coordinator: caller is not an admin")
	ErrNotOwner          = errors.New("coordinator: caller is not the owner")
	ErrPaused            = errors.New("coordinator: paused")
	ErrNotPaused         = errors.New("coordinator: not paused")
	ErrInvalidWallet     = errors.New("coordinator: invalid wallet")
	ErrInvalidSupabaseID = errors.New("coordinator: invalid supabase id")
	ErrInvalidDataHash   = errors.New("coordinator: invalid data hash")
	ErrEmptyBatch        = errors.New("coordinator: no pieces")
	ErrArrayMismatch     = errors.New("coordinator: weights and qualities length mismatch")
	ErrBatchTooLarge     = fmt.Errorf("coordinator: batch exceeds %d pieces", valuation.MaxBatchSize)
	ErrInvalidAdmin      = errors.New("coordinator: invalid admin address")
	ErrOwnerRemoval      = errors.New("coordinator: owner cannot be removed from admin set")
	ErrCustomerNotFound  = errors.New("coordinator: customer does not exist")
)

// Options configures a Coordinator.
type Options struct {
	// Self is the coordinator's own address, used as the caller on
	// ledger mints. It must be installed as the ledger's minter.
	Self domain.Address
	// Owner deploys the coordinator; always an admin, cannot be removed.
	Owner domain.Address
	// Custody receives the minted token balances. The customer wallet
	// only keys the record; physical coins stay in the operator's vault,
	// so the tokens stay in the custody wallet. Defaults to Owner.
	Custody domain.Address

	Ledger *ledger.Ledger
	Oracle *oracle.Adapter
	Log    eventlog.Log

	// Clock overrides event timestamps, for tests.
	Clock func() time.Time
}

// Coordinator is the mutating entry point of the platform. Every call is
// serialized under one mutex: a call fully completes, including ledger
// sub-calls and log appends, before the next begins.
type Coordinator struct {
	mu sync.RWMutex

	self    domain.Address
	owner   domain.Address
	custody domain.Address

	admins    map[domain.Address]bool
	adminList []domain.Address
	paused    bool

	customers map[domain.Address]*domain.Customer

	ledger *ledger.Ledger
	oracle *oracle.Adapter
	log    eventlog.Log
	now    func() time.Time
}

// New creates a coordinator. The owner starts as the only admin.
func New(opts Options) *Coordinator {
	custody := opts.Custody
	if custody.IsZero() {
		custody = opts.Owner
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	c := &Coordinator{
		self:      opts.Self,
		owner:     opts.Owner,
		custody:   custody,
		admins:    map[domain.Address]bool{opts.Owner: true},
		adminList: []domain.Address{opts.Owner},
		customers: make(map[domain.Address]*domain.Customer),
		ledger:    opts.Ledger,
		oracle:    opts.Oracle,
		log:       opts.Log,
		now:       now,
	}
	return c
}

// RegisterCustomerAndMintDetailed registers (or updates) the wallet's
// customer record and mints one token per (weight, quality) pair, all
// against a single oracle price snapshot. It returns the id of the last
// token minted.
//
// The call commits as a unit: every precondition is checked and every
// event staged before a single log append persists the batch, so a
// failed call, including a failed append, leaves no trace in the
// ledger, the customer set, or the event log.
func (c *Coordinator) RegisterCustomerAndMintDetailed(ctx context.Context, caller, wallet domain.Address, supabaseID, dataHash domain.Hash, weightsMg []uint64, qualities []domain.Quality) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return 0, ErrPaused
	}
	if !c.admins[caller] {
		return 0, ErrNotAdmin
	}
	if wallet.IsZero() {
		return 0, ErrInvalidWallet
	}
	if supabaseID.IsZero() {
		return 0, ErrInvalidSupabaseID
	}
	if dataHash.IsZero() {
		return 0, ErrInvalidDataHash
	}
	if len(weightsMg) == 0 {
		return 0, ErrEmptyBatch
	}
	if len(weightsMg) != len(qualities) {
		return 0, ErrArrayMismatch
	}
	if len(weightsMg) > valuation.MaxBatchSize {
		return 0, ErrBatchTooLarge
	}
	for _, w := range weightsMg {
		if err := valuation.ValidateWeight(w); err != nil {
			return 0, err
		}
	}
	for _, q := range qualities {
		if !q.Valid() {
			return 0, valuation.ErrInvalidQuality
		}
	}

	// One oracle read per batch; every coin shares the snapshot.
	price, err := c.oracle.CurrentPrice(ctx)
	if err != nil {
		return 0, err
	}

	// Stage every mint against the snapshot. Nothing is written yet; a
	// misconfigured minter slot or a valuation failure aborts here.
	staged, err := c.ledger.StageMintBatch(c.self, c.custody, supabaseID, price, weightsMg, qualities)
	if err != nil {
		return 0, err
	}

	// Build the call's full event batch: registration first, then one
	// minted and one position event per coin, matching replay order.
	existing := c.customers[wallet]
	regEvent := &domain.Event{Timestamp: c.now().UnixMilli()}
	if existing == nil {
		regEvent.Type = domain.EventTypeCustomerRegistered
		regEvent.CustomerRegistered = &domain.CustomerRegisteredEvent{
			Wallet:     wallet,
			SupabaseID: supabaseID,
			DataHash:   dataHash,
		}
	} else {
		regEvent.Type = domain.EventTypeCustomerUpdated
		regEvent.CustomerUpdated = &domain.CustomerUpdatedEvent{
			Wallet:     wallet,
			SupabaseID: supabaseID,
			DataHash:   dataHash,
		}
	}

	events := make([]*domain.Event, 0, 1+2*len(staged))
	events = append(events, regEvent)
	for _, sm := range staged {
		ts := c.now().UnixMilli()
		events = append(events, &domain.Event{
			Type:      domain.EventTypeGoldTokenMinted,
			Timestamp: ts,
			GoldTokenMinted: &domain.GoldTokenMintedEvent{
				TokenID:    sm.Record.TokenID,
				To:         sm.To,
				SupabaseID: sm.Record.SupabaseID,
				GoldPrice:  sm.Record.GoldPrice,
				Quality:    sm.Record.Quality,
				PieceValue: sm.Record.PieceValue,
			},
		})
		events = append(events, &domain.Event{
			Type:      domain.EventTypeCustomerPositionCreated,
			Timestamp: ts,
			CustomerPositionCreated: &domain.CustomerPositionCreatedEvent{
				Wallet:     wallet,
				TokenID:    sm.Record.TokenID,
				Amount:     1,
				PieceValue: sm.Record.PieceValue,
			},
		})
	}

	// One append commits the whole call. A failure here leaves the
	// customer set, the ledger, and the log all untouched.
	if err := c.log.Append(ctx, events); err != nil {
		return 0, fmt.Errorf("append mint batch: %w", err)
	}

	if existing == nil {
		c.customers[wallet] = &domain.Customer{
			Wallet:          wallet,
			SupabaseID:      supabaseID,
			DataHash:        dataHash,
			Exists:          true,
			TotalPieceValue: uint256.NewInt(0),
		}
	} else {
		existing.SupabaseID = supabaseID
		existing.DataHash = dataHash
	}

	record := c.customers[wallet]
	var lastTokenID uint64
	for _, sm := range staged {
		if err := c.ledger.ApplyMinted(&domain.GoldTokenMintedEvent{
			TokenID:    sm.Record.TokenID,
			To:         sm.To,
			SupabaseID: sm.Record.SupabaseID,
			GoldPrice:  sm.Record.GoldPrice,
			Quality:    sm.Record.Quality,
			PieceValue: sm.Record.PieceValue,
		}); err != nil {
			return 0, fmt.Errorf("commit staged mint %d: %w", sm.Record.TokenID, err)
		}
		record.TotalPieceValue.Add(record.TotalPieceValue, uint256.NewInt(sm.Record.PieceValue))
		lastTokenID = sm.Record.TokenID
	}

	return lastTokenID, nil
}

// UpdateCustomerDataHash replaces only the data-hash fingerprint of an
// existing customer. Admin-gated and pause-gated.
func (c *Coordinator) UpdateCustomerDataHash(ctx context.Context, caller, wallet domain.Address, newHash domain.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return ErrPaused
	}
	if !c.admins[caller] {
		return ErrNotAdmin
	}
	if wallet.IsZero() {
		return ErrInvalidWallet
	}
	if newHash.IsZero() {
		return ErrInvalidDataHash
	}
	record := c.customers[wallet]
	if record == nil {
		return ErrCustomerNotFound
	}

	ev := &domain.Event{
		Type:      domain.EventTypeCustomerUpdated,
		Timestamp: c.now().UnixMilli(),
		CustomerUpdated: &domain.CustomerUpdatedEvent{
			Wallet:     wallet,
			SupabaseID: record.SupabaseID,
			DataHash:   newHash,
		},
	}
	if err := c.log.Append(ctx, []*domain.Event{ev}); err != nil {
		return fmt.Errorf("append update event: %w", err)
	}

	record.DataHash = newHash
	return nil
}

// AddAdmin adds an address to the admin set. Owner only.
func (c *Coordinator) AddAdmin(caller, admin domain.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.owner {
		return ErrNotOwner
	}
	if admin.IsZero() {
		return ErrInvalidAdmin
	}
	if c.admins[admin] {
		return nil
	}
	c.admins[admin] = true
	c.adminList = append(c.adminList, admin)
	return nil
}

// RemoveAdmin removes an address from the admin set. Owner only; the
// owner itself can never be removed.
func (c *Coordinator) RemoveAdmin(caller, admin domain.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.owner {
		return ErrNotOwner
	}
	if admin == c.owner {
		return ErrOwnerRemoval
	}
	if !c.admins[admin] {
		return nil
	}
	delete(c.admins, admin)
	for i, a := range c.adminList {
		if a == admin {
			c.adminList = append(c.adminList[:i], c.adminList[i+1:]...)
			break
		}
	}
	return nil
}

// Pause blocks all mutating entry points. Owner only.
func (c *Coordinator) Pause(caller domain.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.owner {
		return ErrNotOwner
	}
	if c.paused {
		return ErrPaused
	}
	c.paused = true
	return nil
}

// Unpause restores normal operation. Owner only.
func (c *Coordinator) Unpause(caller domain.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.owner {
		return ErrNotOwner
	}
	if !c.paused {
		return ErrNotPaused
	}
	c.paused = false
	return nil
}

// Customer returns a copy of the wallet's record, or nil if none exists.
func (c *Coordinator) Customer(wallet domain.Address) *domain.Customer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.customers[wallet].Clone()
}

// TotalPieceValue returns the wallet's accumulated piece value, zero for
// unknown wallets.
func (c *Coordinator) TotalPieceValue(wallet domain.Address) *uint256.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if rec := c.customers[wallet]; rec != nil {
		return new(uint256.Int).Set(rec.TotalPieceValue)
	}
	return uint256.NewInt(0)
}

// IsCustomer reports whether the wallet has a record.
func (c *Coordinator) IsCustomer(wallet domain.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.customers[wallet] != nil
}

// IsAdmin reports admin-set membership.
func (c *Coordinator) IsAdmin(addr domain.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.admins[addr]
}

// Admins returns the admin set in insertion order.
func (c *Coordinator) Admins() []domain.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Address, len(c.adminList))
	copy(out, c.adminList)
	return out
}

// Paused reports the pause flag.
func (c *Coordinator) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Owner returns the coordinator owner.
func (c *Coordinator) Owner() domain.Address {
	return c.owner
}

// Apply replays a customer-facing event into coordinator state without
// logging. Minted events are the ledger's concern and are skipped here.
func (c *Coordinator) Apply(ev *domain.Event) error {
	if ev == nil {
		return fmt.Errorf("coordinator: nil event")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case domain.EventTypeCustomerRegistered:
		p := ev.CustomerRegistered
		if p == nil {
			return fmt.Errorf("coordinator: event seq %d missing registered payload", ev.Seq)
		}
		c.customers[p.Wallet] = &domain.Customer{
			Wallet:          p.Wallet,
			SupabaseID:      p.SupabaseID,
			DataHash:        p.DataHash,
			Exists:          true,
			TotalPieceValue: uint256.NewInt(0),
		}
	case domain.EventTypeCustomerUpdated:
		p := ev.CustomerUpdated
		if p == nil {
			return fmt.Errorf("coordinator: event seq %d missing updated payload", ev.Seq)
		}
		rec := c.customers[p.Wallet]
		if rec == nil {
			return fmt.Errorf("coordinator: update for unknown wallet %s at seq %d", p.Wallet, ev.Seq)
		}
		rec.SupabaseID = p.SupabaseID
		rec.DataHash = p.DataHash
	case domain.EventTypeCustomerPositionCreated:
		p := ev.CustomerPositionCreated
		if p == nil {
			return fmt.Errorf("coordinator: event seq %d missing position payload", ev.Seq)
		}
		rec := c.customers[p.Wallet]
		if rec == nil {
			return fmt.Errorf("coordinator: position for unknown wallet %s at seq %d", p.Wallet, ev.Seq)
		}
		rec.TotalPieceValue.Add(rec.TotalPieceValue, uint256.NewInt(p.PieceValue))
	case domain.EventTypeGoldTokenMinted:
		// Ledger state, handled by ledger.ApplyMinted.
	default:
		return fmt.Errorf("coordinator: unknown event type %q at seq %d", ev.Type, ev.Seq)
	}
	return nil
}
