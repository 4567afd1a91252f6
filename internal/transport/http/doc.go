// Package http serves the status API of the pipelines daemon. It is a thin
// layer over the operations manager and the scheduler: handlers parse the
// request, call the runner and render the result with chi/render.
//
// # Routes
//
//	GET  /api/health          liveness, version and the latest run status
//	GET  /api/runs            recent runs, newest first
//	GET  /api/runs/latest     the latest run
//	GET  /api/runs/{id}       one run
//	POST /api/runs            start a run in the background
//	GET  /api/schedule        scheduled jobs with their next run
//	GET  /api/outputs         files in the output directory
//	GET  /outputs/*           the output files themselves
//	GET  /metrics             Prometheus metrics
//
// # Error Handling
//
// Errors are rendered through errors.WriteError, which maps application
// errors onto status codes:
//
//	{
//	    "success": false,
//	    "error": {"status_code": 404, "error_code": "RUN_NOT_FOUND", "message": "..."}
//	}
//
// # Middleware
//
//	- RequestID: request ID propagated as the log trace ID
//	- StructuredLogger: one slog line per request
//	- Recoverer: panics become 500 responses
//	- RateLimiter: token bucket over the whole API
package http
