package charts

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ONEcampaign/interest-rates/internal/config"
	"github.com/ONEcampaign/interest-rates/internal/debt"
	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/exporter"
	"github.com/ONEcampaign/interest-rates/internal/government"
	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/publish"
	"github.com/ONEcampaign/interest-rates/internal/shared/testutil"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

type fakeTables map[string]*sources.Table

func (f fakeTables) Read(_ context.Context, location string) (*sources.Table, error) {
	t, ok := f[location]
	if !ok {
		return nil, apperrors.NewNotFoundError("raw data file " + location)
	}
	return t, nil
}

type fakeFed []sources.RateObservation

func (f fakeFed) Fetch(context.Context) ([]sources.RateObservation, error) {
	return f, nil
}

type fakeWEO map[string][]sources.WEOValue

func (f fakeWEO) Fetch(_ context.Context, indicator string) ([]sources.WEOValue, error) {
	return f[indicator], nil
}

type fakePublisher struct {
	runID  string
	tables []publish.Table
}

func (p *fakePublisher) Publish(_ context.Context, runID string, tables []publish.Table) error {
	p.runID = runID
	p.tables = tables
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func testLoans() []testutil.Loan {
	return []testutil.Loan{
		{Country: "Kenya", Counterpart: debt.Bondholders, Year: 2020, Commitments: 100e9, Rate: 2, Grace: 2, Maturity: 10, Payments: 5e9},
		{Country: "Ghana", Counterpart: debt.Bondholders, Year: 2020, Commitments: 300e9, Rate: 6, Grace: 3, Maturity: 12, Payments: 15e9},
		{Country: "Kenya", Counterpart: debt.WorldBankIBRD, Year: 2020, Commitments: 200e9, Rate: 1, Grace: 5, Maturity: 20, Payments: 3e9},
		{Country: "Ghana", Counterpart: debt.WorldBankIBRD, Year: 2020, Commitments: 50e9, Rate: 1.5, Grace: 5, Maturity: 25, Payments: 1e9},
		{Country: "Brazil", Counterpart: debt.Bondholders, Year: 2020, Commitments: 1000e9, Rate: 4, Grace: 1, Maturity: 7, Payments: 40e9},
	}
}

func newTestDeps(t *testing.T) (*Deps, *testutil.FakeIDS) {
	t.Helper()

	paths, err := config.NewPaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	logger, _ := testutil.NewTestLogger()
	ref := loadReference(t)
	ids := &testutil.FakeIDS{Observations: testutil.LoanObservations(testLoans()...)}

	cfg := config.Default()
	cfg.Pipeline.StartYear = 2020
	cfg.Pipeline.EndYear = 2020
	cfg.Pipeline.MapYear = 2020
	cfg.Pipeline.DifferenceStartYear = 2020
	cfg.Pipeline.DifferenceEndYear = 2020

	return &Deps{
		Analyzer: debt.NewAnalyzer(ids, ref, logger),
		IDS:      ids,
		Finance: government.NewFinance(fakeWEO{
			sources.WEOGDP: {{ISO3: "KEN", Year: 2020, Value: 100}},
		}),
		Fed: fakeFed{
			{Date: time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), Rate: 0.08},
			{Date: time.Date(2022, time.February, 1, 0, 0, 0, 0, time.UTC), Rate: 0.08},
			{Date: time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC), Rate: 0.20},
		},
		Tables: fakeTables{
			cfg.Sources.GeometriesTable: sources.NewTable([]string{"ISO3", "geometry"}, [][]string{{"KEN", "POLYGON((1 1))"}}),
		},
		Ref:      ref,
		Writer:   exporter.NewCSVWriter(paths, logger),
		Paths:    paths,
		Pipeline: cfg.Pipeline,
		Sources:  cfg.Sources,
		Logger:   logger,
	}, ids
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRegister(t *testing.T) {
	d, _ := newTestDeps(t)
	reg := operations.NewRegistry()
	require.NoError(t, Register(reg, d))

	assert.Equal(t, []string{
		StepFedRates, StepInflation, StepGeometries, StepBarsAfrica, StepBarsMICs, StepSmoothLine,
		StepScatter, StepMapIBRD, StepMapBonds, StepObservable, StepDebtHealth,
	}, reg.ListIDs())
	assert.Len(t, reg.ByFrequency(operations.FrequencyFrequent), 2)
	assert.Len(t, reg.ByFrequency(operations.FrequencyWeekly), 9)

	raw := operations.NewRegistry()
	require.NoError(t, RegisterRawData(raw, d))
	assert.Equal(t, []string{StepDebtServiceRaw, StepGovernmentFinance}, raw.ListIDs())
}

func TestStepsWriteCharts(t *testing.T) {
	d, ids := newTestDeps(t)
	reg := operations.NewRegistry()
	require.NoError(t, Register(reg, d))

	m := operations.NewManager(reg, operations.NewConfig(), d.Logger)
	m.AddFinalizer(WorkbookFinalizer(d.Writer, WorkbookFile, d.Logger))
	pub := &fakePublisher{}
	m.AddFinalizer(PublishFinalizer(pub, d.Logger))

	resp, err := m.Execute(context.Background(), operations.OperationRequest{
		Steps: []string{
			StepFedRates, StepGeometries, StepBarsAfrica, StepBarsMICs, StepSmoothLine,
			StepScatter, StepMapIBRD, StepMapBonds, StepObservable,
		},
		Today: time.Date(2022, time.March, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)

	var names []string
	for _, out := range resp.Outputs {
		names = append(names, filepath.Base(out))
	}
	assert.Equal(t, []string{
		"fed_rate_hikes.csv",
		"fed_rate_hikes_wide.csv",
		GeometriesFile,
		BarsAfricaFile,
		BarsMICsFile,
		"afr_others_rates_smooth_line_2020_2020.csv",
		"afr_others_rates_scatter_2020_2020.csv",
		MapIBRDFile,
		MapBondsFile,
		"expected_payments_2020_2020.csv",
		"africa_overview_2020_2020.csv",
		"mics_overview_2020_2020.csv",
	}, names)

	ibrd := readOutput(t, d.Paths.OutputPath(MapIBRDFile))
	assert.Equal(t, [][]string{
		MapHeader,
		{"GHA", "Ghana", "2020", "1.5", "Africa"},
		{"KEN", "Kenya", "2020", "1", "Africa"},
	}, ibrd)

	bars := readOutput(t, d.Paths.OutputPath(BarsAfricaFile))
	require.Len(t, bars, 2)
	assert.Equal(t, BarsHeader, bars[0])
	assert.Equal(t, []string{"2020", "Africa", debt.Bondholders}, bars[1][:3])

	overview := readOutput(t, d.Paths.OutputPath("africa_overview_2020_2020.csv"))
	assert.Equal(t, OverviewHeader, overview[0])
	require.Len(t, overview, 3)
	assert.Equal(t, "400000000000", overview[1][2])

	assert.FileExists(t, d.Paths.OutputPath(WorkbookFile))
	assert.Len(t, pub.tables, len(names))
	assert.Equal(t, resp.ID, pub.runID)

	// downloads are shared between the steps covering the same years
	assert.LessOrEqual(t, ids.Calls(), 2)
}

func TestStepValidateReportsMissingDeps(t *testing.T) {
	err := NewScatterStep(&Deps{}).Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scatter: missing analyzer")
	assert.Contains(t, err.Error(), "scatter: missing writer")

	d, _ := newTestDeps(t)
	assert.NoError(t, NewScatterStep(d).Validate(nil))
}

func TestServiceObservationsDownloadsMissingRawData(t *testing.T) {
	d, ids := newTestDeps(t)
	ids.Observations = []sources.Observation{{
		Country:         "Kenya",
		CounterpartArea: debt.WorldAggregate,
		SeriesCode:      debt.ServiceIndicators[0],
		Year:            2020,
		Value:           12.5,
	}}

	obs, err := d.serviceObservations(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 12.5, obs[0].Value)

	raw := readOutput(t, d.Paths.RawDataPath(debt.ServiceRawFile))
	assert.Equal(t, debt.ServiceHeader, raw[0])
	assert.Equal(t, []string{"Kenya", debt.WorldAggregate, debt.ServiceIndicators[0], "2020", "12.5"}, raw[1])
}

func TestGovernmentFinanceStep(t *testing.T) {
	d, _ := newTestDeps(t)
	reg := operations.NewRegistry()
	require.NoError(t, RegisterRawData(reg, d))
	m := operations.NewManager(reg, operations.NewConfig(), d.Logger)

	resp, err := m.Execute(context.Background(), operations.OperationRequest{Steps: []string{StepGovernmentFinance}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Steps[StepGovernmentFinance].Metadata["gdp_usd"])
	assert.Equal(t, 0, resp.Steps[StepGovernmentFinance].Metadata["ppp_gdp"])
}
