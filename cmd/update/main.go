// Command update runs the chart pipelines once. Without flags it runs the
// steps due today: the frequent steps every day and everything on the
// weekly day.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ONEcampaign/interest-rates/internal/app"
	"github.com/ONEcampaign/interest-rates/internal/operations"
)

type options struct {
	all     bool
	steps   []string
	list    bool
	refresh bool
	today   time.Time
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(stderr)

	all := fs.Bool("all", false, "run every step regardless of the day")
	step := fs.String("step", "", "comma separated step IDs to run")
	list := fs.Bool("list", false, "list the steps and exit")
	refresh := fs.Bool("refresh", false, "bypass cached source responses")
	date := fs.String("date", "", "run as if today were this date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{all: *all, list: *list, refresh: *refresh}
	for _, id := range strings.Split(*step, ",") {
		if id = strings.TrimSpace(id); id != "" {
			opts.steps = append(opts.steps, id)
		}
	}
	if *date != "" {
		d, err := time.Parse(time.DateOnly, *date)
		if err != nil {
			return options{}, fmt.Errorf("invalid -date %q: %w", *date, err)
		}
		opts.today = d
	}
	return opts, nil
}

func (o options) request() operations.OperationRequest {
	return operations.OperationRequest{
		Steps:   o.steps,
		All:     o.all,
		Refresh: o.refresh,
		Today:   o.today,
	}
}

// listSteps prints one line per step: ID, frequency and name.
func listSteps(w io.Writer, reg *operations.Registry) {
	for _, s := range reg.List() {
		fmt.Fprintf(w, "%-22s %-9s %s\n", s.ID(), s.Frequency(), s.Name())
	}
}

// summarize prints the outcome of every step in run order.
func summarize(w io.Writer, resp *operations.OperationResponse) {
	fmt.Fprintf(w, "run %s (%s): %s in %s\n", resp.ID, resp.Group, resp.Status, resp.Duration.Round(time.Millisecond))
	for _, id := range resp.Order {
		st := resp.Steps[id]
		if st == nil {
			continue
		}
		line := fmt.Sprintf("  %-22s %s", id, st.Status)
		if st.ErrorText != "" {
			line += "  " + st.ErrorText
		}
		fmt.Fprintln(w, line)
	}
	for _, out := range resp.Outputs {
		fmt.Fprintf(w, "  wrote %s\n", out)
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApplication(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	code := 0
	if opts.list {
		listSteps(os.Stdout, a.Charts.GetRegistry())
	} else {
		resp, err := a.Charts.Execute(ctx, opts.request())
		if resp != nil {
			summarize(os.Stdout, resp)
		}
		if err != nil {
			a.Logger.ErrorContext(ctx, "Update failed", slog.String("error", err.Error()))
			code = 1
		}
	}

	if err := a.Close(context.Background()); err != nil {
		a.Logger.Error("Shutdown error", slog.String("error", err.Error()))
	}
	os.Exit(code)
}
