package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/ONEcampaign/interest-rates/internal/config"
	"github.com/ONEcampaign/interest-rates/internal/infrastructure"
)

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths   *config.Paths
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics

	mu      sync.Mutex
	written []string
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	return &CSVWriter{
		paths:   paths,
		logger:  infrastructure.WithComponent(logger, "csv_writer"),
		metrics: infrastructure.NoopPipelineMetrics(),
	}
}

// SetMetrics records written rows on m.
func (w *CSVWriter) SetMetrics(m *infrastructure.PipelineMetrics) {
	if m != nil {
		w.metrics = m
	}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(ctx context.Context, filePath string, options WriteOptions) error {
	fullPath := w.paths.Resolve(filePath)

	w.logger.InfoContext(ctx, "Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", filePath, err)
	}

	w.track(fullPath)
	w.metrics.RecordRows(ctx, filepath.Base(fullPath), len(options.Records))
	return nil
}

// WriteTable writes a chart table without BOM, replacing any previous file.
func (w *CSVWriter) WriteTable(ctx context.Context, filePath string, headers []string, records [][]string) error {
	return w.WriteCSV(ctx, filePath, WriteOptions{
		Headers: headers,
		Records: records,
	})
}

// Written returns the files written so far, in order.
func (w *CSVWriter) Written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.written)
}

func (w *CSVWriter) track(fullPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !slices.Contains(w.written, fullPath) {
		w.written = append(w.written, fullPath)
	}
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	closer io.Closer
	writer *csv.Writer
	rows   int
}

// NewStreamWriter streams CSV records to out. Close flushes but does not
// close out.
func NewStreamWriter(out io.Writer, headers []string) (*StreamWriter, error) {
	writer := csv.NewWriter(out)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return &StreamWriter{writer: writer}, nil
}

// CreateStreamWriter creates a streaming CSV writer on filePath, resolved
// like WriteCSV. An empty filePath or "-" streams to stdout.
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	if filePath == "" || filePath == "-" {
		return NewStreamWriter(os.Stdout, headers)
	}

	fullPath := w.paths.Resolve(filePath)
	w.logger.Info("Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("header_count", len(headers)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	sw, err := NewStreamWriter(f, headers)
	if err != nil {
		f.Close()
		return nil, err
	}
	sw.closer = f
	w.track(fullPath)
	return sw, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	s.rows++
	return s.writer.Write(record)
}

// Rows returns the number of records written.
func (s *StreamWriter) Rows() int {
	return s.rows
}

// Close flushes the stream and closes the file it writes to, if any.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	err := s.writer.Error()
	if s.closer == nil {
		return err
	}
	if cerr := s.closer.Close(); err == nil {
		err = cerr
	}
	return err
}
