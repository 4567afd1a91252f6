package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ONEcampaign/interest-rates/internal/config"
	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
)

const SourceTable = "table"

// Table is a CSV file held in memory.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable builds a table from a header and rows.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: header, Rows: rows, index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return t
}

// Column returns the position of name, or -1.
func (t *Table) Column(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Require returns the positions of names, failing on the first missing one.
func (t *Table) Require(names ...string) ([]int, error) {
	cols := make([]int, len(names))
	for i, name := range names {
		cols[i] = t.Column(name)
		if cols[i] < 0 {
			return nil, apperrors.NewParsingError(fmt.Sprintf("missing column %q", name), nil)
		}
	}
	return cols, nil
}

// ParseTable reads a CSV with a header row.
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError("read csv", err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewParsingError("empty csv", nil)
	}
	return NewTable(records[0], records[1:]), nil
}

// TableSource reads CSV tables from http(s) URLs through the fetcher or
// from files in the raw data directory.
type TableSource struct {
	fetcher *Fetcher
	paths   *config.Paths
}

func NewTableSource(fetcher *Fetcher, paths *config.Paths) *TableSource {
	return &TableSource{fetcher: fetcher, paths: paths}
}

func (s *TableSource) Read(ctx context.Context, location string) (*Table, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		body, err := s.fetcher.Get(ctx, SourceTable, location)
		if err != nil {
			return nil, err
		}
		return ParseTable(bytes.NewReader(body))
	}

	path := s.paths.RawDataPath(location)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("raw data file " + path)
		}
		return nil, apperrors.NewStorageError("open "+path, err)
	}
	defer f.Close()
	return ParseTable(f)
}
