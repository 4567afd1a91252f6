package interest

import (
	"fmt"
	"math"
)

// GroupWeights returns each value's share of the total of the values sharing
// its key, along with those totals. Missing values do not count towards a
// total. A group whose total is zero yields NaN weights.
func GroupWeights[K comparable](keys []K, values []float64) ([]float64, map[K]float64, error) {
	if len(keys) != len(values) {
		return nil, nil, fmt.Errorf("group weights: %d keys for %d values", len(keys), len(values))
	}

	totals := make(map[K]float64)
	for i, k := range keys {
		if math.IsNaN(values[i]) {
			continue
		}
		totals[k] += values[i]
	}

	weights := make([]float64, len(values))
	for i, k := range keys {
		weights[i] = values[i] / totals[k]
	}
	return weights, totals, nil
}

// WeightedColumns sums column*weight within each group for every column.
// Missing values (NaN) in a column are skipped; NaN weights propagate. Groups
// are returned in order of first appearance.
func WeightedColumns[K comparable](keys []K, weights []float64, columns ...[]float64) ([]K, [][]float64, error) {
	if len(keys) != len(weights) {
		return nil, nil, fmt.Errorf("weighted columns: %d keys for %d weights", len(keys), len(weights))
	}
	for c, col := range columns {
		if len(col) != len(keys) {
			return nil, nil, fmt.Errorf("weighted columns: column %d has %d values for %d keys", c, len(col), len(keys))
		}
	}

	index := make(map[K]int)
	order := make([]K, 0)
	sums := make([][]float64, 0)

	for i, k := range keys {
		g, ok := index[k]
		if !ok {
			g = len(order)
			index[k] = g
			order = append(order, k)
			sums = append(sums, make([]float64, len(columns)))
		}
		for c, col := range columns {
			if math.IsNaN(col[i]) {
				continue
			}
			sums[g][c] += col[i] * weights[i]
		}
	}
	return order, sums, nil
}

// GroupAverage is the commitment-weighted summary of one group of loans.
type GroupAverage[K comparable] struct {
	Key         K
	Commitments float64
	Rate        float64
	Maturity    float64
	Grace       float64
}

// WeightedAverages groups loans by key, weights each loan by its share of the
// group's commitments and returns the weighted rate, maturity and grace of
// every group in order of first appearance.
func WeightedAverages[K comparable](keys []K, loans []LoanAggregate) ([]GroupAverage[K], error) {
	if len(keys) != len(loans) {
		return nil, fmt.Errorf("weighted averages: %d keys for %d loans", len(keys), len(loans))
	}

	commitments := make([]float64, len(loans))
	rates := make([]float64, len(loans))
	maturities := make([]float64, len(loans))
	graces := make([]float64, len(loans))
	for i, l := range loans {
		commitments[i] = l.CommitmentAmount
		rates[i] = l.NominalRatePercent
		maturities[i] = l.MaturityYears
		graces[i] = l.GraceYears
	}

	weights, totals, err := GroupWeights(keys, commitments)
	if err != nil {
		return nil, err
	}

	order, sums, err := WeightedColumns(keys, weights, rates, maturities, graces)
	if err != nil {
		return nil, err
	}

	out := make([]GroupAverage[K], len(order))
	for g, k := range order {
		out[g] = GroupAverage[K]{
			Key:         k,
			Commitments: totals[k],
			Rate:        sums[g][0],
			Maturity:    sums[g][1],
			Grace:       sums[g][2],
		}
	}
	return out, nil
}
