package debt

import (
	"math"
	"slices"
	"sort"

	"github.com/ONEcampaign/interest-rates/internal/interest"
	"github.com/ONEcampaign/interest-rates/internal/reference"
)

// DefaultWeightsBy groups rows into single country-counterpart-years.
var DefaultWeightsBy = []string{FieldYear, FieldIncomeLevel, FieldContinent, FieldCountry, FieldCounterpartArea}

// Summary is the weighted summary of a group of loan rows.
type Summary struct {
	Key
	ISO3             string
	Commitments      float64
	Rate             float64
	ExpectedPayments float64
	Weight           float64
	AvgRate          float64
	AvgMaturities    float64
	AvgGrace         float64
	Aggregate        bool
}

// FilterBy keeps the rows whose field is one of values.
func FilterBy(rows []LoanRow, field string, values []string) []LoanRow {
	var out []LoanRow
	for _, r := range rows {
		if slices.Contains(values, r.Field(field)) {
			out = append(out, r)
		}
	}
	return out
}

// KeepMarketAccessOnly keeps the countries that borrowed from bondholders.
func KeepMarketAccessOnly(rows []LoanRow) []LoanRow {
	market := make(map[string]bool)
	for _, r := range rows {
		if r.CounterpartArea == Bondholders && !math.IsNaN(r.Commitments) {
			market[r.Country] = true
		}
	}
	var out []LoanRow
	for _, r := range rows {
		if market[r.Country] {
			out = append(out, r)
		}
	}
	return out
}

// FlagAfrica replaces every continent other than Africa with "Other".
func FlagAfrica(rows []LoanRow) []LoanRow {
	out := make([]LoanRow, len(rows))
	for i, r := range rows {
		r.Continent = reference.FlagAfrica(r.Continent)
		out[i] = r
	}
	return out
}

// Summarise weights each row by its share of the commitments of the rows
// sharing its weightsBy fields, then groups rows by groupBy. Each group sums
// commitments, nominal rates, expected payments and weights, and the
// weighted rate, maturity and grace. Missing values are skipped in sums.
// Groups are sorted by the groupBy fields in order.
func Summarise(rows []LoanRow, weightsBy, groupBy []string) ([]Summary, error) {
	weightKeys := make([]Key, len(rows))
	groupKeys := make([]Key, len(rows))
	commitments := make([]float64, len(rows))
	rates := make([]float64, len(rows))
	maturities := make([]float64, len(rows))
	graces := make([]float64, len(rows))
	expected := make([]float64, len(rows))
	ones := make([]float64, len(rows))
	for i, r := range rows {
		weightKeys[i] = r.Key.project(weightsBy)
		groupKeys[i] = r.Key.project(groupBy)
		commitments[i] = r.Commitments
		rates[i] = r.Rate
		maturities[i] = r.Maturities
		graces[i] = r.Grace
		expected[i] = r.ExpectedPayments
		ones[i] = 1
	}

	weights, _, err := interest.GroupWeights(weightKeys, commitments)
	if err != nil {
		return nil, err
	}
	order, averages, err := interest.WeightedColumns(groupKeys, weights, rates, maturities, graces)
	if err != nil {
		return nil, err
	}
	_, totals, err := interest.WeightedColumns(groupKeys, ones, commitments, rates, expected, weights)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, len(order))
	for g, k := range order {
		out[g] = Summary{
			Key:              k,
			Commitments:      totals[g][0],
			Rate:             totals[g][1],
			ExpectedPayments: totals[g][2],
			Weight:           totals[g][3],
			AvgRate:          averages[g][0],
			AvgMaturities:    averages[g][1],
			AvgGrace:         averages[g][2],
		}
	}
	sortSummaries(out, groupBy)
	return out, nil
}

func sortSummaries(s []Summary, fields []string) {
	sort.SliceStable(s, func(i, j int) bool {
		for _, f := range fields {
			if f == FieldYear {
				if s[i].Year != s[j].Year {
					return s[i].Year < s[j].Year
				}
				continue
			}
			a, b := s[i].Key.Field(f), s[j].Key.Field(f)
			if a != b {
				return a < b
			}
		}
		return false
	})
}

// SortKey is one column of an income ordering.
type SortKey struct {
	Field     string
	Ascending bool
}

// DefaultIncomeOrder sorts poorest income groups first, then counterparts
// descending, continent, country and most recent year first.
var DefaultIncomeOrder = []SortKey{
	{Field: "order", Ascending: true},
	{Field: FieldCounterpartArea, Ascending: false},
	{Field: FieldContinent, Ascending: true},
	{Field: FieldCountry, Ascending: true},
	{Field: FieldYear, Ascending: false},
}

// OrderIncome stably sorts items by keys, where the "order" field ranks the
// income level from low to high income. key extracts the Key of an item.
func OrderIncome[T any](items []T, key func(T) Key, keys []SortKey) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := key(items[i]), key(items[j])
		for _, k := range keys {
			c := compareField(a, b, k.Field)
			if c == 0 {
				continue
			}
			if k.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareField(a, b Key, field string) int {
	switch field {
	case "order":
		return reference.IncomeOrder(a.IncomeLevel) - reference.IncomeOrder(b.IncomeLevel)
	case FieldYear:
		return a.Year - b.Year
	default:
		x, y := a.Field(field), b.Field(field)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
}
