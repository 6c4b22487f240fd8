package oddsmath_test

import (
	"testing"

	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/XavierBriggs/Apollo/pkg/oddsmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreOffer(t *testing.T) {
	tests := []struct {
		name      string
		odds      int
		fairProb  float64
		feeRate   float64
		wantEVPct float64
		wantClass models.EVClass
	}{
		{
			// 0.5 × 2.05 − 1 = +0.025
			name:      "plus 105 against even fair",
			odds:      105,
			fairProb:  0.5,
			wantEVPct: 2.5,
			wantClass: models.EVPositiveMarginal,
		},
		{
			// 0.5 × 1.909… − 1 = −0.0455…
			name:      "minus 110 against even fair",
			odds:      -110,
			fairProb:  0.5,
			wantEVPct: -4.5454545,
			wantClass: models.EVNegativeStrong,
		},
		{
			name:      "fair-priced offer is neutral",
			odds:      100,
			fairProb:  0.5,
			wantEVPct: 0,
			wantClass: models.EVNeutral,
		},
		{
			// 2% exchange commission: decimal 2.0 → 1.98
			name:      "exchange fee haircuts winnings",
			odds:      100,
			fairProb:  0.5,
			feeRate:   0.02,
			wantEVPct: -1.0,
			wantClass: models.EVNeutral,
		},
		{
			// 0.55 × 2.0 − 1 = +0.10
			name:      "strong positive edge",
			odds:      100,
			fairProb:  0.55,
			wantEVPct: 10.0,
			wantClass: models.EVPositiveStrong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := oddsmath.ScoreOffer(tt.odds, tt.fairProb, tt.feeRate)
			require.NoError(t, err)

			assert.InDelta(t, tt.wantEVPct, res.EVPercent, 1e-6)
			assert.Equal(t, tt.wantClass, res.Class)
		})
	}
}

func TestScoreOffer_Invalid(t *testing.T) {
	_, err := oddsmath.ScoreOffer(110, 0, 0)
	require.Error(t, err)

	_, err = oddsmath.ScoreOffer(110, 1, 0)
	require.Error(t, err)

	_, err = oddsmath.ScoreOffer(50, 0.5, 0)
	require.Error(t, err)

	_, err = oddsmath.ScoreOffer(110, 0.5, 1.0)
	require.Error(t, err)
}

// Band boundaries are inclusive on their lower bound; the negative
// boundaries belong to the band below.
func TestClassifyEV_Boundaries(t *testing.T) {
	tests := []struct {
		evPct float64
		want  models.EVClass
	}{
		{evPct: 8.0, want: models.EVPositiveStrong},
		{evPct: 4.5, want: models.EVPositiveStrong},
		{evPct: 4.499, want: models.EVPositiveMarginal},
		{evPct: 2.0, want: models.EVPositiveMarginal},
		{evPct: 1.999, want: models.EVNeutral},
		{evPct: 0, want: models.EVNeutral},
		{evPct: -1.999, want: models.EVNeutral},
		{evPct: -2.0, want: models.EVNeutral},
		{evPct: -2.001, want: models.EVNegativeMarginal},
		{evPct: -4.499, want: models.EVNegativeMarginal},
		{evPct: -4.5, want: models.EVNegativeStrong},
		{evPct: -9.0, want: models.EVNegativeStrong},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, oddsmath.ClassifyEV(tt.evPct), "EV%%=%f", tt.evPct)
	}
}
