package debt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/interest"
	"github.com/ONEcampaign/interest-rates/internal/reference"
	"github.com/ONEcampaign/interest-rates/internal/shared"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// DataSource provides raw IDS observations. *sources.IDSClient implements it.
type DataSource interface {
	Fetch(ctx context.Context, indicators []string, startYear, endYear int) ([]sources.Observation, error)
}

var validate = validator.New()

// Options parameterise ExpectedPaymentsOnNewDebt.
type Options struct {
	StartYear    int     `validate:"required,gte=1970"`
	EndYear      int     `validate:"required,gtefield=StartYear"`
	DiscountRate float64 `validate:"gte=0"`
	// NewRate replaces every nominal rate, in percentage points.
	NewRate *float64
	// RateDifference is added to the (possibly replaced) rate.
	RateDifference *float64

	FilterCountries bool
	FilterType      string   `validate:"omitempty,oneof=continent income_level country"`
	FilterValues    []string

	MarketAccessOnly bool
	AddAggregate     bool
	AggregateName    string `validate:"required_if=AddAggregate true"`
	OnlyAggregate    bool
	WeightsBy        []string `validate:"omitempty,dive,oneof=year income_level continent country counterpart_area"`
}

// Validate checks the options.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return apperrors.FromValidation(err)
	}
	if (o.FilterCountries || o.AddAggregate) && (o.FilterType == "" || len(o.FilterValues) == 0) {
		return apperrors.NewAppValidationError("FilterType and FilterValues are required to filter or aggregate countries")
	}
	if o.OnlyAggregate && !o.AddAggregate {
		return apperrors.NewAppValidationError("OnlyAggregate requires AddAggregate")
	}
	return nil
}

func (o Options) scenario() interest.PaymentScenario {
	s := interest.PaymentScenario{DiscountRate: o.DiscountRate}
	if o.NewRate != nil {
		s = s.WithOverride(*o.NewRate)
	}
	if o.RateDifference != nil {
		s = s.WithDelta(*o.RateDifference)
	}
	return s
}

// Analyzer computes expected interest payments from IDS data. Downloads are
// shared between calls for the same years until Reset.
type Analyzer struct {
	src    DataSource
	ref    *reference.Table
	calc   *interest.Calculator
	logger *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	gen   uint64
	memo  map[[2]int][]sources.Observation
}

func NewAnalyzer(src DataSource, ref *reference.Table, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		src:    src,
		ref:    ref,
		calc:   interest.NewCalculator(logger),
		logger: logger.With(slog.String("component", "debt_analyzer")),
		memo:   make(map[[2]int][]sources.Observation),
	}
}

// Reset forgets shared downloads. Fetches still in flight are not kept.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	clear(a.memo)
}

func studyIndicatorCodes() []string {
	var codes []string
	for _, set := range []IndicatorSet{RateIndicators, GraceIndicators, MaturitiesIndicators, CommitmentsIndicators, InterestPaymentsIndicators} {
		codes = append(codes, set.SeriesCodes()...)
	}
	return codes
}

func (a *Analyzer) observations(ctx context.Context, startYear, endYear int) ([]sources.Observation, error) {
	key := [2]int{startYear, endYear}

	a.mu.Lock()
	obs, ok := a.memo[key]
	gen := a.gen
	a.mu.Unlock()
	if ok {
		return obs, nil
	}

	v, err, _ := a.group.Do(fmt.Sprintf("%d/%d-%d", gen, startYear, endYear), func() (interface{}, error) {
		obs, err := a.src.Fetch(ctx, studyIndicatorCodes(), startYear, endYear)
		if err != nil {
			return nil, fmt.Errorf("load IDS data %d-%d: %w", startYear, endYear, err)
		}
		a.mu.Lock()
		if a.gen == gen {
			a.memo[key] = obs
		}
		a.mu.Unlock()
		return obs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]sources.Observation), nil
}

func (a *Analyzer) clean(obs []sources.Observation, set IndicatorSet) []Record {
	return Clean(obs, a.ref, set, StudyCounterparts())
}

// Terms returns commitments joined with rate, grace and maturities for the
// study counterparts.
func (a *Analyzer) Terms(ctx context.Context, startYear, endYear int) ([]LoanRow, error) {
	obs, err := a.observations(ctx, startYear, endYear)
	if err != nil {
		return nil, err
	}
	return MergeTerms(
		a.clean(obs, CommitmentsIndicators),
		a.clean(obs, RateIndicators),
		a.clean(obs, GraceIndicators),
		a.clean(obs, MaturitiesIndicators),
	), nil
}

// Payments returns commitments joined with rate and interest payments for
// the study counterparts.
func (a *Analyzer) Payments(ctx context.Context, startYear, endYear int) ([]LoanRow, error) {
	obs, err := a.observations(ctx, startYear, endYear)
	if err != nil {
		return nil, err
	}
	return MergePayments(
		a.clean(obs, CommitmentsIndicators),
		a.clean(obs, RateIndicators),
		a.clean(obs, InterestPaymentsIndicators),
	), nil
}

// ExpectedPaymentsOnNewDebt computes the expected interest payments of every
// country-counterpart-year and their commitment weighted terms. With
// AddAggregate the group formed by the filter is summarised per year and
// counterpart under AggregateName and listed first.
func (a *Analyzer) ExpectedPaymentsOnNewDebt(ctx context.Context, opts Options) ([]Summary, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	rows, err := a.Terms(ctx, opts.StartYear, opts.EndYear)
	if err != nil {
		return nil, err
	}
	if opts.FilterCountries {
		rows = FilterBy(rows, opts.FilterType, opts.FilterValues)
	}
	if opts.MarketAccessOnly {
		rows = KeepMarketAccessOnly(rows)
	}

	loans := make([]interest.LoanAggregate, len(rows))
	for i, r := range rows {
		loans[i] = r.Loan()
	}
	payments, err := a.calc.Apply(ctx, loans, opts.scenario())
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].ExpectedPayments = payments[i]
	}

	var aggregate []Summary
	if opts.AddAggregate {
		aggregate, err = groupStats(rows, opts.FilterType, opts.FilterValues, opts.AggregateName)
		if err != nil {
			return nil, err
		}
	}
	if opts.OnlyAggregate {
		return aggregate, nil
	}

	weightsBy := opts.WeightsBy
	if len(weightsBy) == 0 {
		weightsBy = DefaultWeightsBy
	}
	countries, err := Summarise(rows, weightsBy, DefaultWeightsBy)
	if err != nil {
		return nil, err
	}

	a.logger.DebugContext(ctx, "expected payments computed",
		slog.Int("rows", len(rows)),
		slog.Int("aggregate_rows", len(aggregate)),
		slog.Int("country_rows", len(countries)))

	return append(aggregate, countries...), nil
}

// groupStats summarises the rows whose filter field is in values per year
// and counterpart, named name.
func groupStats(rows []LoanRow, field string, values []string, name string) ([]Summary, error) {
	idx := []string{FieldYear, FieldCounterpartArea}
	group, err := Summarise(FilterBy(rows, field, values), idx, idx)
	if err != nil {
		return nil, err
	}
	for i := range group {
		group[i].Country = name
		group[i].Rate = math.NaN()
		group[i].Aggregate = true
	}
	return group, nil
}

// SingleOptions parameterise SingleCounterpart.
type SingleOptions struct {
	StartYear        int
	EndYear          int
	Counterpart      string `validate:"required"`
	DiscountRate     float64
	NewRate          *float64
	RateDifference   *float64
	FilterType       string
	FilterValues     []string
	AggregateName    string
	MarketAccessOnly bool
}

// SingleCounterpart returns the aggregate of a group of countries for one
// counterpart, with expected payments in billions rounded to 2 decimals.
func (a *Analyzer) SingleCounterpart(ctx context.Context, opts SingleOptions) ([]Summary, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, apperrors.FromValidation(err)
	}

	group, err := a.ExpectedPaymentsOnNewDebt(ctx, Options{
		StartYear:        opts.StartYear,
		EndYear:          opts.EndYear,
		DiscountRate:     opts.DiscountRate,
		NewRate:          opts.NewRate,
		RateDifference:   opts.RateDifference,
		FilterCountries:  true,
		FilterType:       opts.FilterType,
		FilterValues:     opts.FilterValues,
		MarketAccessOnly: opts.MarketAccessOnly,
		AddAggregate:     true,
		AggregateName:    opts.AggregateName,
		OnlyAggregate:    true,
	})
	if err != nil {
		return nil, err
	}

	var out []Summary
	for _, s := range group {
		if s.CounterpartArea != opts.Counterpart {
			continue
		}
		s.ISO3 = a.ref.ISO3(s.Country)
		s.ExpectedPayments = shared.Round(s.ExpectedPayments/1e9, 2)
		out = append(out, s)
	}
	return out, nil
}

// DifferenceOptions parameterise CounterpartDifference.
type DifferenceOptions struct {
	StartYear             int
	EndYear               int
	MainCounterpart       string `validate:"required"`
	ComparisonCounterpart string `validate:"required,nefield=MainCounterpart"`
	FilterType            string
	FilterValues          []string
	AggregateName         string
}

// Difference compares a counterpart's expected payments with what they
// would be at another counterpart's average rate.
type Difference struct {
	Summary
	AvgRateComparison         float64
	ExpectedPaymentsAtNewRate float64
}

// DifferenceDiscountRate discounts both scenarios of CounterpartDifference.
const DifferenceDiscountRate = 0.05

// CounterpartDifference returns, per year, the main counterpart's expected
// payments and the payments it would expect at the comparison counterpart's
// average rate that year.
func (a *Analyzer) CounterpartDifference(ctx context.Context, opts DifferenceOptions) ([]Difference, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, apperrors.FromValidation(err)
	}

	single := func(counterpart string, newRate *float64) ([]Summary, error) {
		return a.SingleCounterpart(ctx, SingleOptions{
			StartYear:     opts.StartYear,
			EndYear:       opts.EndYear,
			Counterpart:   counterpart,
			DiscountRate:  DifferenceDiscountRate,
			NewRate:       newRate,
			FilterType:    opts.FilterType,
			FilterValues:  opts.FilterValues,
			AggregateName: opts.AggregateName,
		})
	}

	actual, err := single(opts.MainCounterpart, nil)
	if err != nil {
		return nil, err
	}
	comparison, err := single(opts.ComparisonCounterpart, nil)
	if err != nil {
		return nil, err
	}
	comparisonRates := make(map[int]float64, len(comparison))
	for _, c := range comparison {
		if _, ok := comparisonRates[c.Year]; !ok {
			comparisonRates[c.Year] = c.AvgRate
		}
	}

	out := make([]Difference, 0, len(actual))
	for _, s := range actual {
		rate, ok := comparisonRates[s.Year]
		if !ok {
			rate = math.NaN()
		}
		atRate, err := single(opts.MainCounterpart, &rate)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(atRate, func(r Summary) bool { return r.Year == s.Year })
		if i < 0 {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s payments in %d", opts.MainCounterpart, s.Year))
		}
		out = append(out, Difference{
			Summary:                   s,
			AvgRateComparison:         rate,
			ExpectedPaymentsAtNewRate: atRate[i].ExpectedPayments,
		})
	}
	return out, nil
}
