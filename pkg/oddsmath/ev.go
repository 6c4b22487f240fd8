package oddsmath

import (
	"fmt"

	"github.com/XavierBriggs/Apollo/pkg/models"
)

// Classification band boundaries, in EV percent. Lower bounds are
// inclusive on the positive side; -2.0 itself still classifies neutral.
const (
	StrongEVThreshold   = 4.5
	MarginalEVThreshold = 2.0
)

// EVResult holds the scored value of one offer against a fair probability.
type EVResult struct {
	OfferedOdds     int     // American odds offered by the book
	AdjustedDecimal float64 // decimal odds after any exchange-fee haircut
	FairProbability float64 // de-vigged win probability
	EVPercent       float64 // signed percent of stake
	Class           models.EVClass
}

// ScoreOffer computes the expected value of a unit stake on one offer.
// feeRate is the commission taken by an exchange book (0 for regular
// sportsbooks); it haircuts the winnings before the EV computation:
// decimal' = 1 + (decimal - 1) * (1 - fee).
func ScoreOffer(offeredOdds int, fairProbability float64, feeRate float64) (*EVResult, error) {
	if fairProbability <= 0 || fairProbability >= 1 {
		return nil, fmt.Errorf("fair probability %f out of range (0, 1)", fairProbability)
	}
	if feeRate < 0 || feeRate >= 1 {
		return nil, fmt.Errorf("fee rate %f out of range [0, 1)", feeRate)
	}

	decimal, err := AmericanToDecimal(offeredOdds)
	if err != nil {
		return nil, err
	}

	adjusted := 1.0 + (decimal-1.0)*(1.0-feeRate)

	ev := fairProbability*adjusted - 1.0
	evPct := ev * 100.0

	return &EVResult{
		OfferedOdds:     offeredOdds,
		AdjustedDecimal: adjusted,
		FairProbability: fairProbability,
		EVPercent:       evPct,
		Class:           ClassifyEV(evPct),
	}, nil
}

// ClassifyEV maps an EV percent to its classification band.
// Boundaries: +4.5 and +2.0 are inclusive lower bounds; -2.0 still
// classifies neutral; -4.5 belongs to negative-strong.
func ClassifyEV(evPct float64) models.EVClass {
	switch {
	case evPct >= StrongEVThreshold:
		return models.EVPositiveStrong
	case evPct >= MarginalEVThreshold:
		return models.EVPositiveMarginal
	case evPct >= -MarginalEVThreshold:
		return models.EVNeutral
	case evPct > -StrongEVThreshold:
		return models.EVNegativeMarginal
	default:
		return models.EVNegativeStrong
	}
}
