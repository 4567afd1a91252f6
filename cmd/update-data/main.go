// Command update-data refreshes the raw source tables: the debt service
// extract and the government finance indicators. Cached responses are
// bypassed unless -cached is set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ONEcampaign/interest-rates/internal/app"
	"github.com/ONEcampaign/interest-rates/internal/operations"
)

func main() {
	cached := flag.Bool("cached", false, "serve fresh cached responses instead of refetching")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApplication(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	resp, err := a.RawData.Execute(ctx, operations.OperationRequest{All: true, Refresh: !*cached})
	if err != nil {
		a.Logger.ErrorContext(ctx, "Raw data update failed", slog.String("error", err.Error()))
		a.Close(context.Background())
		os.Exit(1)
	}

	for _, id := range resp.Order {
		st := resp.Steps[id]
		a.Logger.InfoContext(ctx, "Raw data updated",
			slog.String("step", id),
			slog.Any("metadata", st.Metadata))
	}
}
