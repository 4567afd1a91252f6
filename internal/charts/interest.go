package charts

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ONEcampaign/interest-rates/internal/debt"
	"github.com/ONEcampaign/interest-rates/internal/exporter"
	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/reference"
	"github.com/ONEcampaign/interest-rates/internal/shared"
)

const (
	MapIBRDFile      = "scrolly_chart_map_ibrd_africa_2021_rates.csv"
	MapBondsFile     = "scrolly_chart_map_bonds_africa_2021_rates.csv"
	BarsAfricaFile   = "scrolly_bars_africa_bonds_vs_at_ibrd_rates.csv"
	BarsMICsFile     = "scrolly_bars_mics_bonds_vs_at_ibrd_rates.csv"
	MiddleIncomeName = "Middle income countries"
	mapDiscountRate  = 0.05
)

// Column layouts.
var (
	ScatterHeader    = []string{"country", "counterpart_area", "income_level", "year", "value_rate", "value_commitments", "continent"}
	SmoothLineHeader = []string{"year", "debtor", "income_level", debt.Bondholders, debt.WorldBankIBRD}
	MapHeader        = []string{"iso_code", "country", "year", "rate", "continent"}
	BarsHeader       = []string{"year", "country", "counterpart_area", "expected_payments", "expected_payments_at_new_rate"}
	ObservableHeader = []string{"year", "counterpart_area", "value_commitments", "avg_rate", "avg_grace", "avg_maturity", "expected_payments", "country"}
	OverviewHeader   = []string{"year", "counterpart_area", "value_commitments", "avg_rate", "avg_grace", "avg_maturities", "expected_payments", "country"}
)

func scatterFile(start, end int) string {
	return fmt.Sprintf("afr_others_rates_scatter_%d_%d.csv", start, end)
}

func smoothLineFile(start, end int) string {
	return fmt.Sprintf("afr_others_rates_smooth_line_%d_%d.csv", start, end)
}

// ScatterRecords lists every country-counterpart-year with Africa flagged
// against other continents, poorest income groups first.
func ScatterRecords(rows []debt.LoanRow) [][]string {
	rows = debt.FlagAfrica(rows)
	debt.OrderIncome(rows, func(r debt.LoanRow) debt.Key { return r.Key }, debt.DefaultIncomeOrder)

	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.Country,
			r.CounterpartArea,
			r.IncomeLevel,
			strconv.Itoa(r.Year),
			exporter.FormatFloat(r.Rate),
			exporter.FormatNumber(r.Commitments, exporter.Millions, 2),
			r.Continent,
		}
	}
	return out
}

// SmoothLineRecords compares the average bondholder and IBRD rates paid by
// African and other debtors per year and income level. Rates are rounded to
// 3 decimals; combinations without loans are empty.
func SmoothLineRecords(rows []debt.LoanRow) ([][]string, error) {
	idx := []string{debt.FieldYear, debt.FieldCounterpartArea, debt.FieldContinent, debt.FieldIncomeLevel}
	summaries, err := debt.Summarise(debt.FlagAfrica(rows), idx, idx)
	if err != nil {
		return nil, err
	}

	type lineKey struct {
		year   int
		debtor string
		income string
	}
	lines := make(map[lineKey]map[string]float64)
	var keys []lineKey
	for _, s := range summaries {
		if s.CounterpartArea != debt.Bondholders && s.CounterpartArea != debt.WorldBankIBRD {
			continue
		}
		for _, debtor := range []string{reference.ContinentAfrica, reference.Other} {
			k := lineKey{year: s.Year, debtor: debtor, income: s.IncomeLevel}
			if lines[k] == nil {
				lines[k] = make(map[string]float64)
				keys = append(keys, k)
			}
			if _, ok := lines[k][s.CounterpartArea]; !ok {
				lines[k][s.CounterpartArea] = math.NaN()
			}
			if s.Continent == debtor {
				lines[k][s.CounterpartArea] = shared.Round(s.AvgRate, 3)
			}
		}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if oa, ob := reference.IncomeOrder(a.income), reference.IncomeOrder(b.income); oa != ob {
			return oa < ob
		}
		if a.debtor != b.debtor {
			return a.debtor < b.debtor
		}
		if a.income != b.income {
			return a.income < b.income
		}
		return a.year < b.year
	})

	out := make([][]string, len(keys))
	for i, k := range keys {
		rates := lines[k]
		out[i] = []string{strconv.Itoa(k.year), k.debtor, k.income, cell(rates, debt.Bondholders), cell(rates, debt.WorldBankIBRD)}
	}
	return out, nil
}

func cell(values map[string]float64, key string) string {
	v, ok := values[key]
	if !ok {
		return ""
	}
	return exporter.FormatFloat(v)
}

// MapRecords keeps the country rows of one counterpart with their nominal
// rate.
func MapRecords(summaries []debt.Summary, counterpart string, ref *reference.Table) [][]string {
	var out [][]string
	for _, s := range summaries {
		if s.Aggregate || s.CounterpartArea != counterpart {
			continue
		}
		out = append(out, []string{
			ref.ISO3(s.Country),
			s.Country,
			strconv.Itoa(s.Year),
			exporter.FormatFloat(s.Rate),
			s.Continent,
		})
	}
	return out
}

// BarsRecords formats counterpart differences, in billions.
func BarsRecords(diffs []debt.Difference) [][]string {
	out := make([][]string, len(diffs))
	for i, d := range diffs {
		out[i] = []string{
			strconv.Itoa(d.Year),
			d.Country,
			d.CounterpartArea,
			exporter.FormatFloat(d.ExpectedPayments),
			exporter.FormatFloat(d.ExpectedPaymentsAtNewRate),
		}
	}
	return out
}

// SummaryRecords formats expected payment summaries with commitments and
// payments divided by scale.
func SummaryRecords(summaries []debt.Summary, scale float64) [][]string {
	out := make([][]string, len(summaries))
	for i, s := range summaries {
		out[i] = []string{
			strconv.Itoa(s.Year),
			s.CounterpartArea,
			exporter.FormatFloat(s.Commitments / scale),
			exporter.FormatFloat(s.AvgRate),
			exporter.FormatFloat(s.AvgGrace),
			exporter.FormatFloat(s.AvgMaturities),
			exporter.FormatFloat(s.ExpectedPayments / scale),
			s.Country,
		}
	}
	return out
}

// ScatterStep writes the rate and commitments scatter of every debtor.
type ScatterStep struct {
	operations.BaseStage
	deps *Deps
}

func NewScatterStep(d *Deps) *ScatterStep {
	return &ScatterStep{
		BaseStage: operations.NewBaseStage(StepScatter, "Rates scatter", operations.FrequencyWeekly),
		deps:      d,
	}
}

func (s *ScatterStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{"analyzer": s.deps.Analyzer != nil, "writer": s.deps.Writer != nil})
}

func (s *ScatterStep) Execute(ctx context.Context, state *operations.OperationState) error {
	p := s.deps.Pipeline
	rows, err := s.deps.Analyzer.Payments(ctx, p.StartYear, p.EndYear)
	if err != nil {
		return err
	}
	return s.deps.write(ctx, state, s.ID(), scatterFile(p.StartYear, p.EndYear), ScatterHeader, ScatterRecords(rows))
}

// SmoothLineStep writes the Africa against others average rate lines.
type SmoothLineStep struct {
	operations.BaseStage
	deps *Deps
}

func NewSmoothLineStep(d *Deps) *SmoothLineStep {
	return &SmoothLineStep{
		BaseStage: operations.NewBaseStage(StepSmoothLine, "Rates smooth line", operations.FrequencyWeekly),
		deps:      d,
	}
}

func (s *SmoothLineStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{"analyzer": s.deps.Analyzer != nil, "writer": s.deps.Writer != nil})
}

func (s *SmoothLineStep) Execute(ctx context.Context, state *operations.OperationState) error {
	p := s.deps.Pipeline
	rows, err := s.deps.Analyzer.Payments(ctx, p.StartYear, p.EndYear)
	if err != nil {
		return err
	}
	records, err := SmoothLineRecords(rows)
	if err != nil {
		return err
	}
	return s.deps.write(ctx, state, s.ID(), smoothLineFile(p.StartYear, p.EndYear), SmoothLineHeader, records)
}

// MapStep writes the rates African countries paid one counterpart in the
// map year.
type MapStep struct {
	operations.BaseStage
	deps        *Deps
	counterpart string
	file        string
}

func NewMapStep(d *Deps, id, counterpart, file string) *MapStep {
	return &MapStep{
		BaseStage:   operations.NewBaseStage(id, counterpart+" rates map", operations.FrequencyWeekly),
		deps:        d,
		counterpart: counterpart,
		file:        file,
	}
}

func (s *MapStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{
		"analyzer":  s.deps.Analyzer != nil,
		"reference": s.deps.Ref != nil,
		"writer":    s.deps.Writer != nil,
	})
}

func (s *MapStep) Execute(ctx context.Context, state *operations.OperationState) error {
	year := s.deps.Pipeline.MapYear
	summaries, err := s.deps.Analyzer.ExpectedPaymentsOnNewDebt(ctx, debt.Options{
		StartYear:       year,
		EndYear:         year,
		DiscountRate:    mapDiscountRate,
		FilterCountries: true,
		FilterType:      debt.FieldContinent,
		FilterValues:    []string{debt.AggregateAfrica},
	})
	if err != nil {
		return err
	}
	return s.deps.write(ctx, state, s.ID(), s.file, MapHeader, MapRecords(summaries, s.counterpart, s.deps.Ref))
}

// BarsGroup selects the countries of a bars chart.
type BarsGroup struct {
	FilterType    string
	FilterValues  []string
	AggregateName string
	File          string
}

var (
	BarsAfrica = BarsGroup{
		FilterType:    debt.FieldContinent,
		FilterValues:  []string{debt.AggregateAfrica},
		AggregateName: debt.AggregateAfrica,
		File:          BarsAfricaFile,
	}
	BarsMICs = BarsGroup{
		FilterType:    debt.FieldIncomeLevel,
		FilterValues:  []string{reference.LowerMiddleIncome, reference.UpperMiddleIncome},
		AggregateName: MiddleIncomeName,
		File:          BarsMICsFile,
	}
)

// BarsStep writes what a group paid bondholders against what it would have
// paid at IBRD rates.
type BarsStep struct {
	operations.BaseStage
	deps  *Deps
	group BarsGroup
}

func NewBarsStep(d *Deps, id string, group BarsGroup) *BarsStep {
	return &BarsStep{
		BaseStage: operations.NewBaseStage(id, group.AggregateName+" bonds against IBRD rates", operations.FrequencyWeekly),
		deps:      d,
		group:     group,
	}
}

func (s *BarsStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{"analyzer": s.deps.Analyzer != nil, "writer": s.deps.Writer != nil})
}

func (s *BarsStep) Execute(ctx context.Context, state *operations.OperationState) error {
	p := s.deps.Pipeline
	diffs, err := s.deps.Analyzer.CounterpartDifference(ctx, debt.DifferenceOptions{
		StartYear:             p.DifferenceStartYear,
		EndYear:               p.DifferenceEndYear,
		MainCounterpart:       debt.Bondholders,
		ComparisonCounterpart: debt.WorldBankIBRD,
		FilterType:            s.group.FilterType,
		FilterValues:          s.group.FilterValues,
		AggregateName:         s.group.AggregateName,
	})
	if err != nil {
		return err
	}
	return s.deps.write(ctx, state, s.ID(), s.group.File, BarsHeader, BarsRecords(diffs))
}

// ObservableStep writes the expected payments table and the Africa and
// middle income overviews.
type ObservableStep struct {
	operations.BaseStage
	deps *Deps
}

func NewObservableStep(d *Deps) *ObservableStep {
	return &ObservableStep{
		BaseStage: operations.NewBaseStage(StepObservable, "Expected payments tables", operations.FrequencyWeekly),
		deps:      d,
	}
}

func (s *ObservableStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{"analyzer": s.deps.Analyzer != nil, "writer": s.deps.Writer != nil})
}

func (s *ObservableStep) Execute(ctx context.Context, state *operations.OperationState) error {
	p := s.deps.Pipeline
	africa := debt.Options{
		StartYear:       p.StartYear,
		EndYear:         p.EndYear,
		FilterCountries: true,
		FilterType:      debt.FieldContinent,
		FilterValues:    []string{debt.AggregateAfrica},
		AddAggregate:    true,
		AggregateName:   debt.AggregateAfrica,
	}
	mics := africa
	mics.FilterType = debt.FieldIncomeLevel
	mics.FilterValues = []string{reference.LowerMiddleIncome, reference.UpperMiddleIncome}
	mics.AggregateName = "Middle income"
	mics.OnlyAggregate = true

	africaOverview := africa
	africaOverview.OnlyAggregate = true

	tables := []struct {
		file   string
		opts   debt.Options
		header []string
		scale  float64
	}{
		{fmt.Sprintf("expected_payments_%d_%d.csv", p.StartYear, p.EndYear), africa, ObservableHeader, exporter.Millions},
		{fmt.Sprintf("africa_overview_%d_%d.csv", p.StartYear, p.EndYear), africaOverview, OverviewHeader, exporter.Units},
		{fmt.Sprintf("mics_overview_%d_%d.csv", p.StartYear, p.EndYear), mics, OverviewHeader, exporter.Units},
	}
	for _, t := range tables {
		summaries, err := s.deps.Analyzer.ExpectedPaymentsOnNewDebt(ctx, t.opts)
		if err != nil {
			return fmt.Errorf("%s: %w", t.file, err)
		}
		if err := s.deps.write(ctx, state, s.ID(), t.file, t.header, SummaryRecords(summaries, t.scale)); err != nil {
			return err
		}
	}
	return nil
}
