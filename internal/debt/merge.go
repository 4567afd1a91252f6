package debt

import (
	"math"

	"github.com/ONEcampaign/interest-rates/internal/interest"
)

// Grouping fields.
const (
	FieldYear            = "year"
	FieldCountry         = "country"
	FieldCounterpartArea = "counterpart_area"
	FieldContinent       = "continent"
	FieldIncomeLevel     = "income_level"
)

// Key identifies a country-counterpart-year. Fields that a grouping does not
// use are left zero.
type Key struct {
	Year            int
	Country         string
	CounterpartArea string
	Continent       string
	IncomeLevel     string
}

func recordKey(r Record) Key {
	return Key{
		Year:            r.Year,
		Country:         r.Country,
		CounterpartArea: r.CounterpartArea,
		Continent:       r.Continent,
		IncomeLevel:     r.IncomeLevel,
	}
}

// project keeps only the named fields of k.
func (k Key) project(fields []string) Key {
	var out Key
	for _, f := range fields {
		switch f {
		case FieldYear:
			out.Year = k.Year
		case FieldCountry:
			out.Country = k.Country
		case FieldCounterpartArea:
			out.CounterpartArea = k.CounterpartArea
		case FieldContinent:
			out.Continent = k.Continent
		case FieldIncomeLevel:
			out.IncomeLevel = k.IncomeLevel
		}
	}
	return out
}

// Field returns the value of a string field by name.
func (k Key) Field(name string) string {
	switch name {
	case FieldCountry:
		return k.Country
	case FieldCounterpartArea:
		return k.CounterpartArea
	case FieldContinent:
		return k.Continent
	case FieldIncomeLevel:
		return k.IncomeLevel
	default:
		return ""
	}
}

// LoanRow joins the commitments of a country-counterpart-year with the loan
// terms reported for it. Missing terms are NaN.
type LoanRow struct {
	Key
	Commitments      float64
	Rate             float64
	Grace            float64
	Maturities       float64
	Payments         float64
	ExpectedPayments float64
}

// Loan returns the row's terms as a calculator input.
func (r LoanRow) Loan() interest.LoanAggregate {
	return interest.LoanAggregate{
		CommitmentAmount:   r.Commitments,
		MaturityYears:      r.Maturities,
		GraceYears:         r.Grace,
		NominalRatePercent: r.Rate,
	}
}

func index(records []Record) map[Key]float64 {
	out := make(map[Key]float64, len(records))
	for _, r := range records {
		k := recordKey(r)
		if _, ok := out[k]; !ok {
			out[k] = r.Value
		}
	}
	return out
}

func lookup(m map[Key]float64, k Key) float64 {
	if v, ok := m[k]; ok {
		return v
	}
	return math.NaN()
}

// MergeTerms left-joins commitments with rate, grace and maturities and keeps
// rows with positive commitments. Commitment order is preserved.
func MergeTerms(commitments, rate, grace, maturities []Record) []LoanRow {
	rates, graces, mats := index(rate), index(grace), index(maturities)

	var out []LoanRow
	for _, c := range commitments {
		if !(c.Value > 0) {
			continue
		}
		k := recordKey(c)
		out = append(out, LoanRow{
			Key:              k,
			Commitments:      c.Value,
			Rate:             lookup(rates, k),
			Grace:            lookup(graces, k),
			Maturities:       lookup(mats, k),
			Payments:         math.NaN(),
			ExpectedPayments: math.NaN(),
		})
	}
	return out
}

// MergePayments left-joins commitments with rate and interest payments and
// keeps rows with positive commitments.
func MergePayments(commitments, rate, payments []Record) []LoanRow {
	rates, pays := index(rate), index(payments)

	var out []LoanRow
	for _, c := range commitments {
		if !(c.Value > 0) {
			continue
		}
		k := recordKey(c)
		out = append(out, LoanRow{
			Key:              k,
			Commitments:      c.Value,
			Rate:             lookup(rates, k),
			Grace:            math.NaN(),
			Maturities:       math.NaN(),
			Payments:         lookup(pays, k),
			ExpectedPayments: math.NaN(),
		})
	}
	return out
}
