package charts

import (
	"context"
	"log/slog"

	"github.com/ONEcampaign/interest-rates/internal/fedrates"
	"github.com/ONEcampaign/interest-rates/internal/inflation"
	"github.com/ONEcampaign/interest-rates/internal/operations"
)

// FedRatesStep writes the federal funds rate changes of every hiking cycle,
// long and wide.
type FedRatesStep struct {
	operations.BaseStage
	deps *Deps
}

func NewFedRatesStep(d *Deps) *FedRatesStep {
	return &FedRatesStep{
		BaseStage: operations.NewBaseStage(StepFedRates, "Fed rate hikes", operations.FrequencyFrequent),
		deps:      d,
	}
}

func (s *FedRatesStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{"fed": s.deps.Fed != nil, "writer": s.deps.Writer != nil})
}

func (s *FedRatesStep) Execute(ctx context.Context, state *operations.OperationState) error {
	obs, err := s.deps.Fed.Fetch(ctx)
	if err != nil {
		return err
	}
	cycles := fedrates.Cycles(state.Today)
	hikes := fedrates.Hikes(obs, cycles)

	if err := s.deps.write(ctx, state, s.ID(), fedrates.HikesFile, fedrates.Header, fedrates.Records(hikes)); err != nil {
		return err
	}
	header, rows := fedrates.Wide(hikes, cycles)
	return s.deps.write(ctx, state, s.ID(), fedrates.HikesWideFile, header, rows)
}

// InflationStep updates the inflation key numbers.
type InflationStep struct {
	operations.BaseStage
	deps *Deps
}

func NewInflationStep(d *Deps) *InflationStep {
	return &InflationStep{
		BaseStage: operations.NewBaseStage(StepInflation, "Inflation key numbers", operations.FrequencyFrequent),
		deps:      d,
	}
}

func (s *InflationStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{
		"tables":    s.deps.Tables != nil,
		"finance":   s.deps.Finance != nil,
		"reference": s.deps.Ref != nil,
		"writer":    s.deps.Writer != nil,
	})
}

func (s *InflationStep) Execute(ctx context.Context, state *operations.OperationState) error {
	t, err := s.deps.Tables.Read(ctx, s.deps.Sources.InflationTable)
	if err != nil {
		return err
	}
	obs, err := inflation.ParseWFP(t)
	if err != nil {
		return err
	}
	ppp, err := s.deps.Finance.PPPGDP(ctx)
	if err != nil {
		return err
	}

	p := s.deps.Pipeline
	kn, err := inflation.Compute(obs, ppp, s.deps.Ref, inflation.DefaultOptions(p.InflationStartYear, p.InflationEndYear))
	if err != nil {
		return err
	}
	if err := s.deps.Writer.UpdateKeyNumbers(ctx, inflation.KeyNumbersFile, kn.Map()); err != nil {
		return err
	}
	state.AddOutput(s.ID(), s.deps.Paths.Resolve(inflation.KeyNumbersFile))

	s.deps.logger().InfoContext(ctx, "inflation key numbers updated",
		slog.String("world_latest_date", kn.WorldLatestDate),
		slog.String("africa_latest_date", kn.AfricaLatestDate))
	return nil
}
