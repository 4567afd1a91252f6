// Package government reads government finance and GDP series from the IMF
// World Economic Outlook.
package government

import (
	"context"
	"fmt"

	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// WEOSource returns the values of a WEO indicator. *sources.WEOClient
// implements it.
type WEOSource interface {
	Fetch(ctx context.Context, indicator string) ([]sources.WEOValue, error)
}

// Point identifies a country-year.
type Point struct {
	ISO3 string
	Year int
}

// Series maps country-years to values.
type Series map[Point]float64

// NewSeries indexes values, scaled by factor.
func NewSeries(values []sources.WEOValue, factor float64) Series {
	s := make(Series, len(values))
	for _, v := range values {
		s[Point{ISO3: v.ISO3, Year: v.Year}] = v.Value * factor
	}
	return s
}

// Get returns the value of a country-year.
func (s Series) Get(iso3 string, year int) (float64, bool) {
	v, ok := s[Point{ISO3: iso3, Year: year}]
	return v, ok
}

// Finance reads revenue, expenditure and GDP.
type Finance struct {
	src WEOSource
}

func NewFinance(src WEOSource) *Finance {
	return &Finance{src: src}
}

func (f *Finance) series(ctx context.Context, indicator string, factor float64) (Series, error) {
	values, err := f.src.Fetch(ctx, indicator)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", indicator, err)
	}
	return NewSeries(values, factor), nil
}

// RevenueGDP returns general government revenue as a share of GDP (%).
func (f *Finance) RevenueGDP(ctx context.Context) (Series, error) {
	return f.series(ctx, sources.WEORevenue, 1)
}

// ExpenditureGDP returns general government expenditure as a share of GDP (%).
func (f *Finance) ExpenditureGDP(ctx context.Context) (Series, error) {
	return f.series(ctx, sources.WEOExpenditure, 1)
}

// GDPUSD returns GDP in current US dollars. WEO reports billions.
func (f *Finance) GDPUSD(ctx context.Context) (Series, error) {
	return f.series(ctx, sources.WEOGDP, 1e9)
}

// PPPGDP returns GDP at purchasing power parity, in billions of
// international dollars.
func (f *Finance) PPPGDP(ctx context.Context) (Series, error) {
	return f.series(ctx, sources.WEOPPPGDP, 1)
}
