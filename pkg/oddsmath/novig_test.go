package oddsmath_test

import (
	"math"
	"testing"

	"github.com/XavierBriggs/Apollo/pkg/oddsmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveVigProportional(t *testing.T) {
	tests := []struct {
		name          string
		probabilities []float64
		wantFair      []float64
		wantErr       bool
	}{
		{
			name:          "standard -110/-110 (4.76% vig)",
			probabilities: []float64{110.0 / 210.0, 110.0 / 210.0},
			wantFair:      []float64{0.5, 0.5},
		},
		{
			name:          "asymmetric -120/-110",
			probabilities: []float64{0.5455, 0.5238},
			wantFair:      []float64{0.5101, 0.4899},
		},
		{
			name:          "three-way soccer +150/+230/+180",
			probabilities: []float64{0.4, 100.0 / 330.0, 100.0 / 280.0},
			wantFair:      []float64{0.3772, 0.2858, 0.3369},
		},
		{
			name:          "single outcome rejected",
			probabilities: []float64{0.9},
			wantErr:       true,
		},
		{
			name:          "zero probability rejected",
			probabilities: []float64{0, 0.5},
			wantErr:       true,
		},
		{
			name:          "negative probability rejected",
			probabilities: []float64{-0.1, 0.6},
			wantErr:       true,
		},
		{
			name:          "NaN rejected",
			probabilities: []float64{math.NaN(), 0.5},
			wantErr:       true,
		},
		{
			name:          "sum above trusted range rejected",
			probabilities: []float64{0.99, 0.99, 0.99},
			wantErr:       true,
		},
		{
			name:          "sum below trusted range rejected",
			probabilities: []float64{0.2, 0.2},
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fair, err := oddsmath.RemoveVigProportional(tt.probabilities)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Len(t, fair, len(tt.wantFair))

			sum := 0.0
			for i, f := range fair {
				assert.InDelta(t, tt.wantFair[i], f, 0.001)
				sum += f
			}
			assert.InDelta(t, 1.0, sum, 1e-9, "fair probabilities must sum to 1")
		})
	}
}

// Two-way moneyline at -110/-110 must de-vig to exactly even.
func TestFairProbabilities_EvenMoneyline(t *testing.T) {
	fair, err := oddsmath.FairProbabilities([]int{-110, -110})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, fair[0], 1e-12)
	assert.InDelta(t, 0.5, fair[1], 1e-12)
}

// Three-way 1x2 from the home/draw/away quotes of a typical soccer market.
func TestFairProbabilities_ThreeWay(t *testing.T) {
	fair, err := oddsmath.FairProbabilities([]int{150, 230, 180})
	require.NoError(t, err)

	assert.InDelta(t, 0.3772, fair[0], 0.001)
	assert.InDelta(t, 0.2858, fair[1], 0.001)
	assert.InDelta(t, 0.3369, fair[2], 0.001)

	sum := fair[0] + fair[1] + fair[2]
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestVigPercentage(t *testing.T) {
	vig := oddsmath.VigPercentage([]float64{110.0 / 210.0, 110.0 / 210.0})
	assert.InDelta(t, 4.7619, vig, 0.001)

	assert.Zero(t, oddsmath.VigPercentage([]float64{0.4, 0.4}))
}
