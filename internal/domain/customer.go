package domain

import "github.com/holiman/uint256"

// Customer is the on-ledger record for a wallet. The actual customer
// document lives off-ledger; only its fingerprints are stored here.
// TotalPieceValue accumulates the value of every coin ever minted for the
// wallet (8-decimal fixed point) and never decreases.
type Customer struct {
	Wallet          Address
	SupabaseID      Hash
	DataHash        Hash
	Exists          bool
	TotalPieceValue *uint256.Int
}

// Clone returns a deep copy, so callers cannot mutate stored state.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	out := *c
	if c.TotalPieceValue != nil {
		out.TotalPieceValue = new(uint256.Int).Set(c.TotalPieceValue)
	}
	return &out
}
