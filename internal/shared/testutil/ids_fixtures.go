package testutil

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// FakeIDS serves fixed observations and counts how often it is asked.
type FakeIDS struct {
	Observations []sources.Observation
	Err          error
	calls        atomic.Int32
}

// Fetch returns the observations of indicators between the years.
func (f *FakeIDS) Fetch(_ context.Context, indicators []string, startYear, endYear int) ([]sources.Observation, error) {
	f.calls.Add(1)
	if f.Err != nil {
		return nil, f.Err
	}
	var out []sources.Observation
	for _, o := range f.Observations {
		if slices.Contains(indicators, o.SeriesCode) && o.Year >= startYear && o.Year <= endYear {
			out = append(out, o)
		}
	}
	return out, nil
}

// Calls returns the number of Fetch calls.
func (f *FakeIDS) Calls() int {
	return int(f.calls.Load())
}

// Loan describes the IDS series reported for one country, counterpart and
// year.
type Loan struct {
	Country     string
	Counterpart string
	Year        int
	Commitments float64
	Rate        float64
	Grace       float64
	Maturity    float64
	Payments    float64
}

// LoanObservations expands loans into the IDS observations the analysis
// reads. Bondholder commitments and payments use the private series and
// every other counterpart the multilateral ones.
func LoanObservations(loans ...Loan) []sources.Observation {
	var out []sources.Observation
	for _, l := range loans {
		commitments, payments := "DT.COM.MLAT.CD", "DT.INT.MLAT.CD"
		if l.Counterpart == "Bondholders" {
			commitments, payments = "DT.COM.PRVT.CD", "DT.INT.PROP.CD"
		}
		series := []struct {
			code  string
			value float64
		}{
			{commitments, l.Commitments},
			{"DT.INR.DPPG", l.Rate},
			{"DT.GPA.DPPG", l.Grace},
			{"DT.MAT.DPPG", l.Maturity},
			{payments, l.Payments},
		}
		for _, s := range series {
			out = append(out, sources.Observation{
				Country:         l.Country,
				CounterpartArea: l.Counterpart,
				SeriesCode:      s.code,
				Year:            l.Year,
				Value:           s.value,
			})
		}
	}
	return out
}
