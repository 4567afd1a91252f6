package charts

import (
	"context"
	"log/slog"

	"github.com/ONEcampaign/interest-rates/internal/exporter"
	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/publish"
)

const WorkbookFile = "charts.xlsx"

// WorkbookFinalizer bundles the CSV outputs of a run into one workbook.
// Runs without outputs are left alone.
func WorkbookFinalizer(w *exporter.CSVWriter, name string, logger *slog.Logger) operations.Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, state *operations.OperationState) error {
		outputs := state.Outputs()
		if len(outputs) == 0 {
			return nil
		}
		if err := w.BuildWorkbook(ctx, name, outputs); err != nil {
			return err
		}
		state.SetContext(operations.ContextKeyWorkbook, name)
		logger.InfoContext(ctx, "workbook built", slog.String("file", name), slog.Int("files", len(outputs)))
		return nil
	}
}

// PublishFinalizer sends the CSV outputs of a run to the publishers.
func PublishFinalizer(p publish.Publisher, logger *slog.Logger) operations.Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, state *operations.OperationState) error {
		tables, err := publish.ReadTables(state.Outputs())
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			return nil
		}
		if err := p.Publish(ctx, state.ID, tables); err != nil {
			return err
		}
		state.SetContext(operations.ContextKeyPublished, len(tables))
		logger.InfoContext(ctx, "outputs published", slog.Int("tables", len(tables)))
		return nil
	}
}
