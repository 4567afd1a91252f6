// Command scheduler runs the pipelines on their cron schedules and serves
// the status API until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ONEcampaign/interest-rates/internal/app"
)

func main() {
	runNow := flag.String("run-now", "", "run a scheduled job (charts or raw-data) once at startup")
	flag.Parse()

	a, err := app.NewApplication(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if *runNow != "" {
		go func() {
			if _, err := a.Scheduler.RunNow(context.Background(), *runNow); err != nil {
				a.Logger.Error("Startup run failed",
					slog.String("job", *runNow),
					slog.String("error", err.Error()))
			}
		}()
	}

	if err := a.Run(); err != nil {
		a.Logger.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
