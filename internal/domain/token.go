package domain

// GoldToken is the immutable valuation record frozen at mint time.
// No field ever changes after creation; the balance ledger may move the
// token between wallets but the record stays as minted.
//
// A zero-valued GoldToken is the "never minted" sentinel: token ids start
// at 1 and Amount is always 1 for minted tokens.
type GoldToken struct {
	TokenID     uint64
	SupabaseID  Hash
	Amount      uint64
	GoldPrice   int64 // oracle snapshot, 8-decimal fixed point per troy ounce
	Quality     Quality
	PieceValue uint64 // 8-decimal fixed point
}

// IsZero reports whether the record is the never-minted sentinel.
func (t GoldToken) IsZero() bool {
	return t == GoldToken{}
}
