// Package app wires the pipelines together: configuration, logging,
// telemetry, the response cache, the upstream clients, the chart and raw
// data pipelines, the scheduler and the status server.
//
// # Initialization Flow
//
//	1. Load configuration from .env, environment and the optional YAML file
//	2. Initialize logging and OpenTelemetry
//	3. Open the cache and build the IDS, WEO and FRED clients
//	4. Register the chart steps and the raw data steps
//	5. Attach the workbook and publish finalizers
//	6. Schedule the daily chart run and the weekly raw data refresh
//	7. Build the status router and HTTP server
//
// # Usage
//
// One-shot commands use the pipelines directly:
//
//	a, err := app.NewApplication(ctx)
//	if err != nil {
//	    return err
//	}
//	defer a.Close(ctx)
//	resp, err := a.Charts.Execute(ctx, operations.OperationRequest{All: true})
//
// The daemon calls Run, which blocks until SIGINT or SIGTERM and then shuts
// the server down, cancels runs in flight and flushes telemetry.
//
// # Error Handling
//
// Initialization errors are returned to the caller. The package never calls
// os.Exit.
package app
