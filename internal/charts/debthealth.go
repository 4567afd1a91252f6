package charts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ONEcampaign/interest-rates/internal/debt"
	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/socialspending"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

const serviceRawPath = "raw/" + debt.ServiceRawFile

func debtHealthFile(year int) string {
	return fmt.Sprintf("debt_health_%d.csv", year)
}

// refreshService downloads the debt service series and stores them in the
// raw data directory.
func (d *Deps) refreshService(ctx context.Context) ([]sources.Observation, error) {
	obs, err := d.IDS.Fetch(ctx, debt.ServiceIndicators, d.Pipeline.StartYear, d.Pipeline.EndYear)
	if err != nil {
		return nil, err
	}
	if err := d.Writer.WriteTable(ctx, serviceRawPath, debt.ServiceHeader, debt.ServiceRows(obs)); err != nil {
		return nil, err
	}
	d.logger().InfoContext(ctx, "debt service raw data saved",
		slog.Int("observations", len(obs)),
		slog.String("path", d.Paths.Resolve(serviceRawPath)))
	return obs, nil
}

// serviceObservations reads the stored debt service series, downloading
// them when they have not been saved yet.
func (d *Deps) serviceObservations(ctx context.Context) ([]sources.Observation, error) {
	t, err := d.Tables.Read(ctx, debt.ServiceRawFile)
	if apperrors.IsType(err, apperrors.ErrTypeNotFound) {
		d.logger().WarnContext(ctx, "debt service raw data missing, downloading")
		return d.refreshService(ctx)
	}
	if err != nil {
		return nil, err
	}
	return debt.ParseServiceTable(t)
}

// DebtHealthStep writes debt service against health spending, both as a
// share of government expenditure.
type DebtHealthStep struct {
	operations.BaseStage
	deps *Deps
}

func NewDebtHealthStep(d *Deps) *DebtHealthStep {
	return &DebtHealthStep{
		BaseStage: operations.NewBaseStage(StepDebtHealth, "Debt service and health spending", operations.FrequencyWeekly),
		deps:      d,
	}
}

func (s *DebtHealthStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{
		"ids":       s.deps.IDS != nil,
		"tables":    s.deps.Tables != nil,
		"finance":   s.deps.Finance != nil,
		"reference": s.deps.Ref != nil,
		"writer":    s.deps.Writer != nil,
	})
}

func (s *DebtHealthStep) Execute(ctx context.Context, state *operations.OperationState) error {
	obs, err := s.deps.serviceObservations(ctx)
	if err != nil {
		return err
	}
	gdp, err := s.deps.Finance.GDPUSD(ctx)
	if err != nil {
		return err
	}
	expenditure, err := s.deps.Finance.ExpenditureGDP(ctx)
	if err != nil {
		return err
	}

	health, err := s.deps.Tables.Read(ctx, s.deps.Sources.HealthSpendingTable)
	if err != nil {
		return err
	}
	healthGDP, err := socialspending.ParseValues(health)
	if err != nil {
		return err
	}

	debtExp := socialspending.ToExpenditure(socialspending.DebtGDP(debt.ServiceTotals(obs, s.deps.Ref), gdp), expenditure)
	healthExp := socialspending.ToExpenditure(healthGDP, expenditure)

	year := s.deps.Pipeline.DebtServiceYear
	rows, err := socialspending.Compare(debtExp, healthExp, s.deps.Ref, year+1)
	if err != nil {
		return err
	}
	return s.deps.write(ctx, state, s.ID(), debtHealthFile(year), socialspending.Header, socialspending.Records(rows))
}

// DebtServiceRawStep downloads the debt service series into the raw data
// directory.
type DebtServiceRawStep struct {
	operations.BaseStage
	deps *Deps
}

func NewDebtServiceRawStep(d *Deps) *DebtServiceRawStep {
	return &DebtServiceRawStep{
		BaseStage: operations.NewBaseStage(StepDebtServiceRaw, "Debt service raw data", operations.FrequencyWeekly),
		deps:      d,
	}
}

func (s *DebtServiceRawStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{"ids": s.deps.IDS != nil, "writer": s.deps.Writer != nil})
}

func (s *DebtServiceRawStep) Execute(ctx context.Context, state *operations.OperationState) error {
	obs, err := s.deps.refreshService(ctx)
	if err != nil {
		return err
	}
	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("observations", len(obs))
	}
	return nil
}

// GovernmentFinanceStep refreshes the WEO government finance indicators.
type GovernmentFinanceStep struct {
	operations.BaseStage
	deps *Deps
}

func NewGovernmentFinanceStep(d *Deps) *GovernmentFinanceStep {
	return &GovernmentFinanceStep{
		BaseStage: operations.NewBaseStage(StepGovernmentFinance, "Government finance indicators", operations.FrequencyWeekly),
		deps:      d,
	}
}

func (s *GovernmentFinanceStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{"finance": s.deps.Finance != nil})
}

func (s *GovernmentFinanceStep) Execute(ctx context.Context, state *operations.OperationState) error {
	f := s.deps.Finance
	indicators := []struct {
		name  string
		fetch func(context.Context) (int, error)
	}{
		{"revenue_gdp", func(ctx context.Context) (int, error) { v, err := f.RevenueGDP(ctx); return len(v), err }},
		{"expenditure_gdp", func(ctx context.Context) (int, error) { v, err := f.ExpenditureGDP(ctx); return len(v), err }},
		{"gdp_usd", func(ctx context.Context) (int, error) { v, err := f.GDPUSD(ctx); return len(v), err }},
		{"ppp_gdp", func(ctx context.Context) (int, error) { v, err := f.PPPGDP(ctx); return len(v), err }},
	}
	st := state.GetStage(s.ID())
	for _, ind := range indicators {
		n, err := ind.fetch(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", ind.name, err)
		}
		if st != nil {
			st.SetMetadata(ind.name, n)
		}
	}
	return nil
}
