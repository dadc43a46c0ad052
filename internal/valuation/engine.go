// Package valuation computes the monetary value of a physical gold coin
// from its weight, its condition grade, and the oracle's spot price.
// The computation is a pure function over exact integers; no floating
// point is involved anywhere, so a stored piece value can always be
// reproduced bit-for-bit from the stored inputs.
package valuation

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"patridefi/internal/domain"
)

const (
	// MilligramsPerTroyOunce converts coin weights to the oracle's
	// per-ounce price unit.
	MilligramsPerTroyOunce = 31_103

	// BpsDenominator is the basis-point scale of the quality multipliers.
	BpsDenominator = 10_000

	// MaxWeightMg is the heaviest single coin accepted, in milligrams.
	MaxWeightMg = 1_000_000

	// MaxBatchSize caps the number of coins per mint call.
	MaxBatchSize = 100

	// PriceDecimals is the fixed-point scale of gold prices and piece
	// values (10^8 units per whole currency unit).
	PriceDecimals = 8
)

var (
	ErrInvalidWeight  = errors.New("valuation: weight must be positive")
	ErrWeightTooLarge = fmt.Errorf("valuation: weight exceeds %d mg", MaxWeightMg)
	ErrInvalidQuality = errors.New("valuation: quality grade out of range")
	ErrInvalidPrice   = errors.New("valuation: gold price must be positive")
	ErrValueOverflow  = errors.New("valuation: piece value overflows uint64")
)

// qualityBps maps each grade to its basis-point value multiplier.
// FDC (perfect condition) is full melt value; lower grades discount it.
var qualityBps = [domain.QualityCount]uint64{
	domain.QualityTB:  8_000,
	domain.QualityTTB: 9_000,
	domain.QualitySUP: 9_500,
	domain.QualitySPL: 9_750,
	domain.QualityFDC: 10_000,
}

// QualityBps returns the basis-point multiplier for a grade.
func QualityBps(q domain.Quality) (uint64, error) {
	if !q.Valid() {
		return 0, ErrInvalidQuality
	}
	return qualityBps[q], nil
}

// ValidateWeight checks the per-coin weight bounds.
func ValidateWeight(weightMg uint64) error {
	if weightMg == 0 {
		return ErrInvalidWeight
	}
	if weightMg > MaxWeightMg {
		return ErrWeightTooLarge
	}
	return nil
}

// PieceValue computes the coin's value in 8-decimal fixed point:
//
//	goldPrice * weightMg * bps(quality) / (10000 * 31103)
//
// with truncating integer division. All three inputs are validated:
// non-positive prices, out-of-bounds weights, and undefined grades each
// fail with their own error. The intermediate product needs more than 64
// bits, so it is carried in a uint256 and only the final quotient is
// required to fit uint64.
func PieceValue(goldPrice int64, weightMg uint64, q domain.Quality) (uint64, error) {
	if goldPrice <= 0 {
		return 0, ErrInvalidPrice
	}
	if err := ValidateWeight(weightMg); err != nil {
		return 0, err
	}
	bps, err := QualityBps(q)
	if err != nil {
		return 0, err
	}

	num := uint256.NewInt(uint64(goldPrice))
	num.Mul(num, uint256.NewInt(weightMg))
	num.Mul(num, uint256.NewInt(bps))

	den := uint256.NewInt(uint64(BpsDenominator) * MilligramsPerTroyOunce)
	num.Div(num, den)

	if !num.IsUint64() {
		return 0, ErrValueOverflow
	}
	return num.Uint64(), nil
}
