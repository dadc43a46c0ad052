package domain

import (
	"encoding/json"
	"fmt"
)

// Quality is the ordinal coin-condition grade. Five grades are defined,
// from TB (lowest) to FDC (highest). Any other value is rejected at the
// decoding boundary, before business logic runs.
type Quality uint8

const (
	QualityTB  Quality = 0 // Très Beau
	QualityTTB Quality = 1 // Très Très Beau
	QualitySUP Quality = 2 // Superbe
	QualitySPL Quality = 3 // Splendide
	QualityFDC Quality = 4 // Fleur De Coin
)

// QualityCount is the number of defined grades.
const QualityCount = 5

var qualityNames = [QualityCount]string{"TB", "TTB", "SUP", "SPL", "FDC"}

// Valid reports whether the grade is one of the five defined values.
func (q Quality) Valid() bool {
	return q < QualityCount
}

// String returns the grade mnemonic, or a numeric placeholder for
// out-of-range values.
func (q Quality) String() string {
	if !q.Valid() {
		return fmt.Sprintf("Quality(%d)", uint8(q))
	}
	return qualityNames[q]
}

// UnmarshalJSON decodes a grade from its integer encoding and rejects
// anything outside [0, 4].
func (q *Quality) UnmarshalJSON(b []byte) error {
	var v uint8
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("decode quality: %w", err)
	}
	if v >= QualityCount {
		return fmt.Errorf("decode quality: value %d out of range [0, %d]", v, QualityCount-1)
	}
	*q = Quality(v)
	return nil
}

// MarshalJSON encodes the grade as its integer value.
func (q Quality) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint8(q))
}
