package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
)

const maxSheetTitle = 100

// SheetsPublisher writes each table to its own tab of a spreadsheet,
// replacing the tab's previous content.
type SheetsPublisher struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewSheetsPublisher authenticates with a service account credentials file.
func NewSheetsPublisher(ctx context.Context, spreadsheetID, credentialsFile string, logger *slog.Logger) (*SheetsPublisher, error) {
	if credentialsFile == "" {
		return nil, apperrors.NewConfigError("a credentials file is required to publish to Google Sheets", nil)
	}
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, apperrors.NewConfigError("read Google credentials", err)
	}
	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return NewSheetsPublisherWithService(service, spreadsheetID, logger), nil
}

// NewSheetsPublisherWithService uses an existing service.
func NewSheetsPublisherWithService(service *sheets.Service, spreadsheetID string, logger *slog.Logger) *SheetsPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsPublisher{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger.With(slog.String("component", "sheets_publisher")),
	}
}

func (p *SheetsPublisher) Publish(ctx context.Context, runID string, tables []Table) error {
	if len(tables) == 0 {
		return nil
	}

	existing, err := p.sheetTitles(ctx)
	if err != nil {
		return err
	}

	var requests []*sheets.Request
	for _, t := range tables {
		title := sheetTitle(t.Name)
		if !existing[title] {
			existing[title] = true
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
			})
		}
	}
	if len(requests) > 0 {
		_, err := p.service.Spreadsheets.BatchUpdate(p.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: requests,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to add sheets: %w", err)
		}
	}

	for _, t := range tables {
		title := sheetTitle(t.Name)
		rangeStr := quoteTitle(title)
		if _, err := p.service.Spreadsheets.Values.Clear(p.spreadsheetID, rangeStr, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to clear %s: %w", title, err)
		}

		valueRange := &sheets.ValueRange{Values: tableValues(t)}
		_, err := p.service.Spreadsheets.Values.Update(
			p.spreadsheetID,
			rangeStr+"!A1",
			valueRange,
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", title, err)
		}
	}

	p.logger.InfoContext(ctx, "Tables published to Google Sheets",
		slog.String("run_id", runID),
		slog.Int("tables", len(tables)))
	return nil
}

func (p *SheetsPublisher) sheetTitles(ctx context.Context) (map[string]bool, error) {
	resp, err := p.service.Spreadsheets.Get(p.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
	}
	titles := make(map[string]bool, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			titles[s.Properties.Title] = true
		}
	}
	return titles, nil
}

func sheetTitle(name string) string {
	if len(name) > maxSheetTitle {
		return name[:maxSheetTitle]
	}
	return name
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func tableValues(t Table) [][]interface{} {
	values := make([][]interface{}, 0, len(t.Rows)+1)
	header := make([]interface{}, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	values = append(values, header)
	for _, row := range t.Rows {
		r := make([]interface{}, len(row))
		for i, v := range row {
			r[i] = v
		}
		values = append(values, r)
	}
	return values
}

func (p *SheetsPublisher) Close() error { return nil }
