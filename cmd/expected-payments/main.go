// Command expected-payments applies a rate scenario to a CSV of loan
// aggregates and appends the present value of their expected interest
// payments.
//
// Input columns: commitment_amount, maturity_years, grace_years and
// nominal_rate_percent. Other columns are copied through.
//
//	expected-payments -in loans.csv -discount 0.05 -delta 1 > out.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ONEcampaign/interest-rates/internal/config"
	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/exporter"
	"github.com/ONEcampaign/interest-rates/internal/infrastructure"
	"github.com/ONEcampaign/interest-rates/internal/interest"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// OutputColumn is appended to every row.
const OutputColumn = "expected_payments"

var inputColumns = []string{"commitment_amount", "maturity_years", "grace_years", "nominal_rate_percent"}

type options struct {
	in       string
	out      string
	scenario interest.PaymentScenario
	billions bool
	workers  int
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("expected-payments", flag.ContinueOnError)
	fs.SetOutput(stderr)

	in := fs.String("in", "-", "input CSV of loan aggregates (- for stdin)")
	out := fs.String("out", "-", "output CSV, relative paths land in the output directory (- for stdout)")
	discount := fs.Float64("discount", 0, "discount rate as a fraction, e.g. 0.05")
	override := fs.String("override", "", "replace every nominal rate with this rate, in percent")
	delta := fs.String("delta", "", "add this many percentage points to the rate")
	billions := fs.Bool("billions", false, "report expected payments in billions")
	workers := fs.Int("workers", 4, "number of calculation workers")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{in: *in, out: *out, billions: *billions, workers: *workers}
	opts.scenario = opts.scenario.WithDiscount(*discount)
	if *override != "" {
		v, err := strconv.ParseFloat(*override, 64)
		if err != nil {
			return options{}, fmt.Errorf("invalid -override %q: %w", *override, err)
		}
		opts.scenario = opts.scenario.WithOverride(v)
	}
	if *delta != "" {
		v, err := strconv.ParseFloat(*delta, 64)
		if err != nil {
			return options{}, fmt.Errorf("invalid -delta %q: %w", *delta, err)
		}
		opts.scenario = opts.scenario.WithDelta(v)
	}
	return opts, nil
}

// parseLoans reads the loan columns of t. Empty or unparsable cells are NaN.
func parseLoans(t *sources.Table) ([]interest.LoanAggregate, error) {
	cols, err := t.Require(inputColumns...)
	if err != nil {
		return nil, err
	}
	cell := func(row []string, i int) float64 {
		if i >= len(row) {
			return math.NaN()
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}

	loans := make([]interest.LoanAggregate, len(t.Rows))
	for i, row := range t.Rows {
		loans[i] = interest.LoanAggregate{
			CommitmentAmount:   cell(row, cols[0]),
			MaturityYears:      cell(row, cols[1]),
			GraceYears:         cell(row, cols[2]),
			NominalRatePercent: cell(row, cols[3]),
		}
	}
	return loans, nil
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer, writer *exporter.CSVWriter, logger *slog.Logger) error {
	r := stdin
	if opts.in != "-" {
		f, err := os.Open(opts.in)
		if err != nil {
			return apperrors.NewStorageError("open "+opts.in, err)
		}
		defer f.Close()
		r = f
	}

	table, err := sources.ParseTable(r)
	if err != nil {
		return err
	}
	loans, err := parseLoans(table)
	if err != nil {
		return err
	}

	calc := interest.NewCalculator(logger)
	if err := calc.SetConcurrency(opts.workers, interest.DefaultChunkSize); err != nil {
		return apperrors.NewAppValidationError(err.Error())
	}
	payments, err := calc.Apply(ctx, loans, opts.scenario)
	if err != nil {
		return err
	}

	header := append(append([]string{}, table.Header...), OutputColumn)
	var sw *exporter.StreamWriter
	if opts.out == "-" {
		sw, err = exporter.NewStreamWriter(stdout, header)
	} else {
		sw, err = writer.CreateStreamWriter(opts.out, header)
	}
	if err != nil {
		return apperrors.NewStorageError("open output", err)
	}
	for i, row := range table.Rows {
		value := exporter.FormatFloat(payments[i])
		if opts.billions {
			value = exporter.FormatFixed(payments[i]/exporter.Billions, 6)
		}
		if err := sw.WriteRecord(append(append([]string{}, row...), value)); err != nil {
			sw.Close()
			return apperrors.NewStorageError("write output", err)
		}
	}
	if err := sw.Close(); err != nil {
		return apperrors.NewStorageError("write output", err)
	}

	logger.InfoContext(ctx, "expected payments written",
		slog.Int("loans", len(loans)),
		slog.Float64("discount_rate", opts.scenario.DiscountRate),
		slog.String("out", opts.out))
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the CSV
	logger := infrastructure.NewLoggerWithWriter(os.Stderr, cfg.Logging.Level)
	slog.SetDefault(logger)

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		logger.Error("Failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(context.Background(), opts, os.Stdin, os.Stdout, exporter.NewCSVWriter(paths, logger), logger); err != nil {
		logger.Error("expected payments failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
