package interest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupWeights(t *testing.T) {
	keys := []string{"a", "a", "b", "b", "b", "c"}
	values := []float64{100, 300, 1, 1, 2, 7}

	weights, totals, err := GroupWeights(keys, values)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.25, 0.75, 0.25, 0.25, 0.5, 1}, weights, 1e-12)
	assert.Equal(t, map[string]float64{"a": 400, "b": 4, "c": 7}, totals)
}

func TestGroupWeightsTotalsSkipMissing(t *testing.T) {
	weights, totals, err := GroupWeights([]string{"a", "a", "a"}, []float64{1, math.NaN(), 3})
	require.NoError(t, err)

	assert.Equal(t, 4.0, totals["a"])
	assert.InDelta(t, 0.25, weights[0], 1e-12)
	assert.True(t, math.IsNaN(weights[1]))
	assert.InDelta(t, 0.75, weights[2], 1e-12)
}

func TestGroupWeightsZeroTotalIsNaN(t *testing.T) {
	weights, _, err := GroupWeights([]int{1, 1, 2}, []float64{0, 0, 5})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(weights[0]))
	assert.True(t, math.IsNaN(weights[1]))
	assert.Equal(t, 1.0, weights[2])
}

func TestGroupWeightsLengthMismatch(t *testing.T) {
	_, _, err := GroupWeights([]string{"a"}, []float64{1, 2})
	assert.Error(t, err)
}

func TestWeightedAverages(t *testing.T) {
	type key struct {
		Year        int
		Counterpart string
	}
	keys := []key{
		{2020, "Bondholders"},
		{2020, "Bondholders"},
		{2020, "World Bank-IBRD"},
	}
	loans := []LoanAggregate{
		{CommitmentAmount: 100, NominalRatePercent: 2, MaturityYears: 10, GraceYears: 2},
		{CommitmentAmount: 300, NominalRatePercent: 6, MaturityYears: 20, GraceYears: 4},
		{CommitmentAmount: 50, NominalRatePercent: 1.5, MaturityYears: 30, GraceYears: 5},
	}

	groups, err := WeightedAverages(keys, loans)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, key{2020, "Bondholders"}, groups[0].Key)
	assert.InDelta(t, 5.0, groups[0].Rate, 1e-12)
	assert.InDelta(t, 17.5, groups[0].Maturity, 1e-12)
	assert.InDelta(t, 3.5, groups[0].Grace, 1e-12)
	assert.InDelta(t, 400.0, groups[0].Commitments, 1e-12)

	assert.InDelta(t, 1.5, groups[1].Rate, 1e-12)
	assert.InDelta(t, 50.0, groups[1].Commitments, 1e-12)
}

func TestWeightedAveragesZeroCommitmentGroupPropagatesNaN(t *testing.T) {
	groups, err := WeightedAverages(
		[]string{"empty", "empty"},
		[]LoanAggregate{{NominalRatePercent: 3}, {NominalRatePercent: 4}},
	)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, math.IsNaN(groups[0].Rate))
	assert.Equal(t, 0.0, groups[0].Commitments)
}

func TestWeightedColumnsSkipsMissingValues(t *testing.T) {
	keys := []string{"x", "x"}
	weights := []float64{0.5, 0.5}
	rates := []float64{4, math.NaN()}

	order, sums, err := WeightedColumns(keys, weights, rates)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, order)
	assert.InDelta(t, 2.0, sums[0][0], 1e-12)
}

func TestWeightedColumnsRejectsShortColumn(t *testing.T) {
	_, _, err := WeightedColumns([]string{"x", "y"}, []float64{1, 1}, []float64{1})
	assert.Error(t, err)
}
