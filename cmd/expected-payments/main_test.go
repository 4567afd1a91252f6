package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ONEcampaign/interest-rates/internal/config"
	"github.com/ONEcampaign/interest-rates/internal/exporter"
	"github.com/ONEcampaign/interest-rates/internal/shared/testutil"
)

const loansCSV = `iso_code,year,commitment_amount,maturity_years,grace_years,nominal_rate_percent
AGO,2020,1000000,13,3,5
KEN,2020,1000,1,0,4
ZMB,2020,,10,2,3
`

func newWriter(t *testing.T) *exporter.CSVWriter {
	t.Helper()
	paths, err := config.NewPaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return exporter.NewCSVWriter(paths, nil)
}

func runCLI(t *testing.T, args []string, input string) [][]string {
	t.Helper()
	opts, err := parseFlags(args, io.Discard)
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, strings.NewReader(input), &out, newWriter(t), logger))

	records, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunAppendsExpectedPayments(t *testing.T) {
	records := runCLI(t, nil, loansCSV)
	require.Len(t, records, 4)
	assert.Equal(t, "expected_payments", records[0][6])
	assert.Equal(t, []string{"AGO", "2020"}, records[1][:2])

	ago, err := strconv.ParseFloat(records[1][6], 64)
	require.NoError(t, err)
	assert.InDelta(t, 375000, ago, 1e-6)

	// one year, no grace: a single year of interest is never charged
	assert.Equal(t, "0", records[2][6])

	// a missing commitment propagates as an empty cell
	assert.Equal(t, "", records[3][6])
}

func TestRunScenarios(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want float64
	}{
		{"override", []string{"-override", "10"}, 750000},
		{"delta", []string{"-delta", "-2.5"}, 187500},
		{"override and delta", []string{"-override", "4", "-delta", "1"}, 375000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := runCLI(t, tt.args, loansCSV)
			got, err := strconv.ParseFloat(records[1][6], 64)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestRunBillions(t *testing.T) {
	records := runCLI(t, []string{"-billions"}, loansCSV)
	assert.Equal(t, "0.000375", records[1][6])
}

func TestRunDiscounting(t *testing.T) {
	nominal := runCLI(t, nil, loansCSV)
	discounted := runCLI(t, []string{"-discount", "0.05"}, loansCSV)

	n, err := strconv.ParseFloat(nominal[1][6], 64)
	require.NoError(t, err)
	d, err := strconv.ParseFloat(discounted[1][6], 64)
	require.NoError(t, err)
	assert.Less(t, d, n)
	assert.Greater(t, d, 0.0)
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "loans.csv")
	out := filepath.Join(dir, "payments.csv")
	require.NoError(t, os.WriteFile(in, []byte(loansCSV), 0o644))

	opts, err := parseFlags([]string{"-in", in, "-out", out}, io.Discard)
	require.NoError(t, err)
	logger, _ := testutil.NewTestLogger()
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), opts, strings.NewReader(""), &stdout, newWriter(t), logger))

	assert.Empty(t, stdout.String())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "iso_code,year,commitment_amount,maturity_years,grace_years,nominal_rate_percent,expected_payments\n"))
}

func TestRunErrors(t *testing.T) {
	logger, _ := testutil.NewTestLogger()

	_, err := parseFlags([]string{"-override", "ten"}, io.Discard)
	assert.Error(t, err)

	opts, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	err = run(context.Background(), opts, strings.NewReader("iso_code,commitment_amount\nAGO,1\n"), io.Discard, newWriter(t), logger)
	assert.ErrorContains(t, err, "maturity_years")

	opts.workers = 0
	err = run(context.Background(), opts, strings.NewReader(loansCSV), io.Discard, newWriter(t), logger)
	assert.Error(t, err)
}
