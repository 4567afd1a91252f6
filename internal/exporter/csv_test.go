package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ONEcampaign/interest-rates/internal/config"
	"github.com/ONEcampaign/interest-rates/internal/shared/testutil"
)

// Setup test environment
func setupTestEnv(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()

	paths, err := config.NewPaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	logger, _ := testutil.NewTestLogger()
	return NewCSVWriter(paths, logger), paths
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	tests := []struct {
		name     string
		filePath string
		options  WriteOptions
		dir      func(p *config.Paths) string
		expected [][]string
		bom      bool
	}{
		{
			name:     "table in output directory",
			filePath: "fed_rate_hikes.csv",
			options: WriteOptions{
				Headers: []string{"change", "months"},
				Records: [][]string{{"0", "0"}, {"0.25", "1"}},
			},
			dir:      func(p *config.Paths) string { return p.OutputDir },
			expected: [][]string{{"change", "months"}, {"0", "0"}, {"0.25", "1"}},
		},
		{
			name:     "raw data file",
			filePath: "raw/ids_service_raw.csv",
			options: WriteOptions{
				Headers: []string{"country"},
				Records: [][]string{{"Kenya"}},
			},
			dir:      func(p *config.Paths) string { return p.RawDataDir },
			expected: [][]string{{"country"}, {"Kenya"}},
		},
		{
			name:     "nested directory is created",
			filePath: "charts/africa.csv",
			options: WriteOptions{
				Headers: []string{"iso_code"},
				Records: [][]string{{"KEN"}},
			},
			dir:      func(p *config.Paths) string { return filepath.Join(p.OutputDir, "charts") },
			expected: [][]string{{"iso_code"}, {"KEN"}},
		},
		{
			name:     "with BOM",
			filePath: "excel.csv",
			options: WriteOptions{
				Headers:   []string{"name"},
				Records:   [][]string{{"Côte d'Ivoire"}},
				BOMPrefix: true,
			},
			dir: func(p *config.Paths) string { return p.OutputDir },
			bom: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, paths := setupTestEnv(t)

			require.NoError(t, w.WriteCSV(context.Background(), tt.filePath, tt.options))

			path := filepath.Join(tt.dir(paths), filepath.Base(tt.filePath))
			content, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.bom, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))
			if tt.expected != nil {
				assert.Equal(t, tt.expected, readCSV(t, path))
			}
			assert.Equal(t, []string{path}, w.Written())
		})
	}
}

func TestCSVWriter_Append(t *testing.T) {
	w, paths := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, w.WriteTable(ctx, "log.csv", []string{"a"}, [][]string{{"1"}}))
	require.NoError(t, w.WriteCSV(ctx, "log.csv", WriteOptions{Headers: []string{"a"}, Records: [][]string{{"2"}}, Append: true}))

	assert.Equal(t, [][]string{{"a"}, {"1"}, {"2"}}, readCSV(t, paths.OutputPath("log.csv")))
	assert.Len(t, w.Written(), 1)
}

func TestCSVWriter_StreamWriter(t *testing.T) {
	w, paths := setupTestEnv(t)

	stream, err := w.CreateStreamWriter("payments.csv", []string{"expected_payments"})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"375000"}))
	require.NoError(t, stream.WriteRecord([]string{"0"}))
	assert.Equal(t, 2, stream.Rows())
	require.NoError(t, stream.Close())

	assert.Equal(t, [][]string{{"expected_payments"}, {"375000"}, {"0"}}, readCSV(t, paths.OutputPath("payments.csv")))
	assert.Equal(t, []string{paths.OutputPath("payments.csv")}, w.Written())
}

func TestNewStreamWriter(t *testing.T) {
	var buf bytes.Buffer
	stream, err := NewStreamWriter(&buf, []string{"iso_code", "value"})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"AGO", "1.5"}))
	require.NoError(t, stream.Close())

	assert.Equal(t, "iso_code,value\nAGO,1.5\n", buf.String())
}

func TestCSVWriter_UpdateKeyNumbers(t *testing.T) {
	w, paths := setupTestEnv(t)
	ctx := context.Background()
	path := paths.OutputPath("inflation_key_numbers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"kept": "yes", "world_max_value": 1}`), 0644))

	require.NoError(t, w.UpdateKeyNumbers(ctx, "inflation_key_numbers.json", map[string]any{
		"world_max_value": 9.4,
		"world_max_date":  "September 2022",
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"kept\": \"yes\"")

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, map[string]any{
		"kept":            "yes",
		"world_max_value": 9.4,
		"world_max_date":  "September 2022",
	}, got)
}

func TestCSVWriter_UpdateKeyNumbersCreatesFile(t *testing.T) {
	w, paths := setupTestEnv(t)

	require.NoError(t, w.UpdateKeyNumbers(context.Background(), "new.json", map[string]any{"a": 1}))
	assert.True(t, config.FileExists(paths.OutputPath("new.json")))

	require.NoError(t, os.WriteFile(paths.OutputPath("bad.json"), []byte("{"), 0644))
	assert.Error(t, w.UpdateKeyNumbers(context.Background(), "bad.json", map[string]any{"a": 1}))
}

func TestCSVWriter_BuildWorkbook(t *testing.T) {
	w, paths := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, w.WriteTable(ctx, "fed_rate_hikes.csv", []string{"cycle", "change"}, [][]string{{"'22-?", "0.25"}}))
	require.NoError(t, w.WriteTable(ctx, "scrolly_chart_map_bonds_africa_2021_rates.csv", []string{"iso_code"}, [][]string{{"KEN"}}))
	require.NoError(t, w.UpdateKeyNumbers(ctx, "inflation_key_numbers.json", map[string]any{"a": 1}))

	require.NoError(t, w.BuildWorkbook(ctx, "charts.xlsx", w.Written()))

	f, err := excelize.OpenFile(paths.OutputPath("charts.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"fed_rate_hikes", "scrolly_chart_map_bonds_africa_"}, f.GetSheetList())
	v, err := f.GetCellValue("fed_rate_hikes", "B2")
	require.NoError(t, err)
	assert.Equal(t, "0.25", v)
	v, err = f.GetCellValue("fed_rate_hikes", "A2")
	require.NoError(t, err)
	assert.Equal(t, "'22-?", v)
}

func TestSheetName(t *testing.T) {
	used := make(map[string]bool)
	assert.Equal(t, "a_b", sheetName("/x/a:b.csv", used))
	assert.Equal(t, "a_b_2", sheetName("/y/a:b.csv", used))

	long := "scrolly_bars_africa_bonds_vs_at_ibrd_rates.csv"
	first := sheetName(long, used)
	second := sheetName(long, used)
	assert.Len(t, first, maxSheetName)
	assert.Len(t, second, maxSheetName)
	assert.NotEqual(t, first, second)
}
