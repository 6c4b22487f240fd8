package oddsmath

import (
	"fmt"
	"math"
)

// AmericanToDecimal converts American odds to decimal odds
// American +150 → Decimal 2.50
// American -110 → Decimal 1.909...
func AmericanToDecimal(american int) (float64, error) {
	if american > -100 && american < 100 {
		return 0, fmt.Errorf("invalid American odds %d: |odds| must be >= 100", american)
	}

	if american > 0 {
		// Positive odds: (american / 100) + 1
		return (float64(american) / 100.0) + 1.0, nil
	}

	// Negative odds: (100 / abs(american)) + 1
	return (100.0 / float64(-american)) + 1.0, nil
}

// DecimalToAmerican converts decimal odds to American odds
// Decimal 2.50 → American +150
// Decimal 1.909 → American -110
//
// Even money is degenerate: +100 and -100 both map to decimal 2.0, and
// 2.0 canonicalises back to +100.
func DecimalToAmerican(decimal float64) (int, error) {
	if decimal <= 1.0 {
		return 0, fmt.Errorf("invalid decimal odds %f: must be > 1.0", decimal)
	}

	if decimal >= 2.0 {
		// Positive American odds: (decimal - 1) * 100
		return int(math.Round((decimal - 1.0) * 100.0)), nil
	}

	// Negative American odds: -100 / (decimal - 1)
	return int(math.Round(-100.0 / (decimal - 1.0))), nil
}

// AmericanToImpliedProbability converts American odds to implied probability
// +100 → 0.50, -110 → 0.5238...
func AmericanToImpliedProbability(american int) (float64, error) {
	if american > -100 && american < 100 {
		return 0, fmt.Errorf("invalid American odds %d: |odds| must be >= 100", american)
	}

	if american > 0 {
		return 100.0 / (float64(american) + 100.0), nil
	}

	abs := float64(-american)
	return abs / (abs + 100.0), nil
}

// ProbabilityToAmerican converts a probability to the American odds that
// price it with zero margin.
func ProbabilityToAmerican(probability float64) (int, error) {
	if math.IsNaN(probability) || probability <= 0 || probability >= 1 {
		return 0, fmt.Errorf("invalid probability %f: must be between 0 and 1", probability)
	}

	decimal := 1.0 / probability
	return DecimalToAmerican(decimal)
}
