package oddsmath

import (
	"fmt"
	"math"
)

// Bounds on the implied-probability sum of a market. Outside this range the
// quotes are untrustworthy (stale lines, one-sided markets) and the market
// is skipped rather than de-vigged.
const (
	MinOverround = 0.5
	MaxOverround = 2.0
)

// RemoveVigProportional removes vig from a market of any outcome count
// using the proportional method.
//
// Formula:
// 1. Sum the implied probabilities: S = Σ p_i (typically > 1.0)
// 2. Normalize: fair_i = p_i / S
// 3. Fair probabilities sum to exactly 1.0
//
// Example:
// Side A: -110 (52.38% implied) | Side B: -110 (52.38% implied)
// Overround: 104.76% (4.76% vig)
// Fair: 50% / 50%
func RemoveVigProportional(probabilities []float64) ([]float64, error) {
	if len(probabilities) < 2 {
		return nil, fmt.Errorf("need at least 2 outcomes, got %d", len(probabilities))
	}

	total := 0.0
	for _, p := range probabilities {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("invalid implied probability %f", p)
		}
		total += p
	}

	if total <= MinOverround || total >= MaxOverround {
		return nil, fmt.Errorf("implied probabilities sum to %f: outside trusted range (%.1f, %.1f)",
			total, MinOverround, MaxOverround)
	}

	fair := make([]float64, len(probabilities))
	for i, p := range probabilities {
		fair[i] = p / total
	}

	return fair, nil
}

// FairProbabilities converts a market's American prices to de-vigged fair
// probabilities, one per outcome, in input order.
func FairProbabilities(americanPrices []int) ([]float64, error) {
	implied := make([]float64, len(americanPrices))
	for i, price := range americanPrices {
		p, err := AmericanToImpliedProbability(price)
		if err != nil {
			return nil, fmt.Errorf("outcome %d: %w", i, err)
		}
		implied[i] = p
	}

	return RemoveVigProportional(implied)
}

// VigPercentage returns the bookmaker margin in a market as a percent.
// -110/-110 → 4.76%.
func VigPercentage(probabilities []float64) float64 {
	total := 0.0
	for _, p := range probabilities {
		total += p
	}
	if total <= 1.0 {
		return 0
	}
	return (total - 1.0) * 100.0
}
