package valuation

import (
	"errors"
	"math"
	"testing"

	"patridefi/internal/domain"
)

func TestPieceValue_KnownScenario(t *testing.T) {
	// 2000.00000000 per ounce, 31g coin, TB grade (8000 bps)
	// 200000000000 * 31000 * 8000 / (10000 * 31103) = 159470147574
	got, err := PieceValue(200_000_000_000, 31_000, domain.QualityTB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 159_470_147_574 {
		t.Errorf("expected 159470147574, got %d", got)
	}
}

func TestPieceValue_ExactOunceFDC(t *testing.T) {
	// A full troy ounce in perfect condition is worth exactly the spot price.
	got, err := PieceValue(200_000_000_000, MilligramsPerTroyOunce, domain.QualityFDC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 200_000_000_000 {
		t.Errorf("expected 200000000000, got %d", got)
	}
}

func TestPieceValue_TruncatesTowardZero(t *testing.T) {
	// 100 * 1 * 10000 / (10000 * 31103) = 100/31103 = 0 after truncation
	got, err := PieceValue(100, 1, domain.QualityFDC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("expected truncation to 0, got %d", got)
	}
}

func TestPieceValue_MonotonicAcrossGrades(t *testing.T) {
	const price = 200_000_000_000
	const weight = 31_000

	prev := uint64(0)
	for q := domain.QualityTB; q <= domain.QualityFDC; q++ {
		v, err := PieceValue(price, weight, q)
		if err != nil {
			t.Fatalf("grade %s: unexpected error: %v", q, err)
		}
		if v <= prev {
			t.Errorf("grade %s: expected value > %d, got %d", q, prev, v)
		}
		prev = v
	}

}

func TestPieceValue_WeightBounds(t *testing.T) {
	const price = 200_000_000_000

	if _, err := PieceValue(price, 0, domain.QualityTB); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("weight 0: expected ErrInvalidWeight, got %v", err)
	}
	if _, err := PieceValue(price, MaxWeightMg+1, domain.QualityTB); !errors.Is(err, ErrWeightTooLarge) {
		t.Errorf("weight %d: expected ErrWeightTooLarge, got %v", MaxWeightMg+1, err)
	}
	if _, err := PieceValue(price, MaxWeightMg, domain.QualityTB); err != nil {
		t.Errorf("weight %d: unexpected error: %v", MaxWeightMg, err)
	}
}

func TestPieceValue_InvalidInputs(t *testing.T) {
	if _, err := PieceValue(0, 31_000, domain.QualityTB); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("price 0: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := PieceValue(-1, 31_000, domain.QualityTB); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("price -1: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := PieceValue(200_000_000_000, 31_000, domain.Quality(5)); !errors.Is(err, ErrInvalidQuality) {
		t.Errorf("quality 5: expected ErrInvalidQuality, got %v", err)
	}
}

func TestPieceValue_OverflowGuard(t *testing.T) {
	// Max price and max weight push the quotient past uint64.
	_, err := PieceValue(math.MaxInt64, MaxWeightMg, domain.QualityFDC)
	if !errors.Is(err, ErrValueOverflow) {
		t.Errorf("expected ErrValueOverflow, got %v", err)
	}
}

func TestPieceValue_RoundTrip(t *testing.T) {
	// Recomputing from stored fields reproduces the stored value exactly.
	cases := []struct {
		price  int64
		weight uint64
		q      domain.Quality
	}{
		{200_000_000_000, 31_000, domain.QualityTB},
		{250_000_000_000, 10_000, domain.QualitySUP},
		{199_999_999_999, 999_999, domain.QualitySPL},
		{1, 1, domain.QualityTTB},
	}
	for _, c := range cases {
		first, err := PieceValue(c.price, c.weight, c.q)
		if err != nil {
			t.Fatalf("(%d,%d,%s): unexpected error: %v", c.price, c.weight, c.q, err)
		}
		second, err := PieceValue(c.price, c.weight, c.q)
		if err != nil {
			t.Fatalf("(%d,%d,%s): unexpected error on recompute: %v", c.price, c.weight, c.q, err)
		}
		if first != second {
			t.Errorf("(%d,%d,%s): %d != %d", c.price, c.weight, c.q, first, second)
		}
	}
}

func TestQualityBps_Table(t *testing.T) {
	expected := map[domain.Quality]uint64{
		domain.QualityTB:  8_000,
		domain.QualityTTB: 9_000,
		domain.QualitySUP: 9_500,
		domain.QualitySPL: 9_750,
		domain.QualityFDC: 10_000,
	}
	for q, want := range expected {
		got, err := QualityBps(q)
		if err != nil {
			t.Fatalf("grade %s: unexpected error: %v", q, err)
		}
		if got != want {
			t.Errorf("grade %s: expected %d bps, got %d", q, want, got)
		}
	}
	if _, err := QualityBps(domain.Quality(7)); !errors.Is(err, ErrInvalidQuality) {
		t.Errorf("grade 7: expected ErrInvalidQuality, got %v", err)
	}
}
