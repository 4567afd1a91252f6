// Package publish copies a run's output tables to optional external sinks:
// a Google Sheets spreadsheet and a Postgres archive.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ONEcampaign/interest-rates/internal/config"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// Table is an output table.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Publisher receives the tables written by a run.
type Publisher interface {
	Publish(ctx context.Context, runID string, tables []Table) error
	Close() error
}

// ReadTables loads the CSV files among files. Other files are skipped.
func ReadTables(files []string) ([]Table, error) {
	var out []Table
	for _, file := range files {
		if !strings.EqualFold(filepath.Ext(file), ".csv") {
			continue
		}
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file, err)
		}
		t, err := sources.ParseTable(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		out = append(out, Table{
			Name:   strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
			Header: t.Header,
			Rows:   t.Rows,
		})
	}
	return out, nil
}

// Multi publishes to every sink and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, runID string, tables []Table) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, runID, tables); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// FromConfig opens the sinks enabled in cfg. With none enabled it returns an
// empty Multi.
func FromConfig(ctx context.Context, cfg config.PublishConfig, logger *slog.Logger) (Multi, error) {
	var sinks Multi
	if cfg.SpreadsheetID != "" {
		s, err := NewSheetsPublisher(ctx, cfg.SpreadsheetID, cfg.CredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.DatabaseURL != "" {
		a, err := NewPostgresArchive(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, a)
	}
	return sinks, nil
}
