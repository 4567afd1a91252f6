package charts

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/ONEcampaign/interest-rates/internal/config"
	"github.com/ONEcampaign/interest-rates/internal/debt"
	"github.com/ONEcampaign/interest-rates/internal/exporter"
	"github.com/ONEcampaign/interest-rates/internal/government"
	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/reference"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// Step IDs, in the order they run.
const (
	StepFedRates          = "fed_rates"
	StepInflation         = "inflation"
	StepGeometries        = "africa_geometries"
	StepBarsAfrica        = "scrolly_bars_africa"
	StepBarsMICs          = "scrolly_bars_mics"
	StepSmoothLine        = "smooth_line"
	StepScatter           = "scatter"
	StepMapIBRD           = "scrolly_map_ibrd"
	StepMapBonds          = "scrolly_map_bonds"
	StepObservable        = "observable"
	StepDebtHealth        = "debt_health"
	StepDebtServiceRaw    = "debt_service_raw"
	StepGovernmentFinance = "government_finance"
)

// TableReader reads CSV tables by URL or raw data file name.
// *sources.TableSource implements it.
type TableReader interface {
	Read(ctx context.Context, location string) (*sources.Table, error)
}

// RateSource provides the effective federal funds rate.
// *sources.FREDClient implements it.
type RateSource interface {
	Fetch(ctx context.Context) ([]sources.RateObservation, error)
}

// Deps holds everything the chart steps read from and write to.
type Deps struct {
	Analyzer *debt.Analyzer
	IDS      debt.DataSource
	Finance  *government.Finance
	Fed      RateSource
	Tables   TableReader
	Ref      *reference.Table
	Writer   *exporter.CSVWriter
	Paths    *config.Paths
	Pipeline config.PipelineConfig
	Sources  config.SourcesConfig
	Logger   *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// write stores a table and records it as an output of stepID.
func (d *Deps) write(ctx context.Context, state *operations.OperationState, stepID, name string, header []string, records [][]string) error {
	if err := d.Writer.WriteTable(ctx, name, header, records); err != nil {
		return err
	}
	state.AddOutput(stepID, d.Paths.Resolve(name))
	d.logger().InfoContext(ctx, "chart written",
		slog.String("step", stepID),
		slog.String("file", name),
		slog.Int("rows", len(records)))
	return nil
}

// check reports missing dependencies of a step.
func check(step string, named map[string]bool) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(named)) {
		if !named[name] {
			errs = append(errs, errors.New(step+": missing "+name))
		}
	}
	return errors.Join(errs...)
}

// Register adds every chart step to reg: the frequent fed and inflation
// steps, then the weekly interest, geometry and debt health charts.
func Register(reg *operations.Registry, d *Deps) error {
	steps := []operations.Step{
		NewFedRatesStep(d),
		NewInflationStep(d),
		NewGeometriesStep(d),
		NewBarsStep(d, StepBarsAfrica, BarsAfrica),
		NewBarsStep(d, StepBarsMICs, BarsMICs),
		NewSmoothLineStep(d),
		NewScatterStep(d),
		NewMapStep(d, StepMapIBRD, debt.WorldBankIBRD, MapIBRDFile),
		NewMapStep(d, StepMapBonds, debt.Bondholders, MapBondsFile),
		NewObservableStep(d),
		NewDebtHealthStep(d),
	}
	for _, s := range steps {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// RegisterRawData adds the steps that refresh the raw source tables.
func RegisterRawData(reg *operations.Registry, d *Deps) error {
	for _, s := range []operations.Step{NewDebtServiceRawStep(d), NewGovernmentFinanceStep(d)} {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}
