package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/ONEcampaign/interest-rates/internal/config"
)

// RouterDeps holds what the routes serve.
type RouterDeps struct {
	// BaseContext bounds runs started over HTTP.
	BaseContext context.Context
	Runner      Runner
	Schedule    Schedule
	OutputDir   string
	// Metrics serves /metrics; nil leaves the route out.
	Metrics http.Handler
	Server  config.ServerConfig
	Logger  *slog.Logger
}

// NewRouter wires the middleware and routes of the status API.
func NewRouter(d RouterDeps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx := d.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → Logger → Recoverer → RateLimiter
		r.Use(StructuredLogger(logger))
		r.Use(Recoverer(logger))
		if d.Server.RateLimitRPS > 0 {
			r.Use(NewRateLimiter(d.Server.RateLimitRPS, d.Server.RateLimitBurst, logger).Handler)
		}

		health := NewHealthHandler(d.Runner, d.Schedule, logger)
		outputs := NewOutputsHandler(d.OutputDir, logger)

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Get("/health", health.HealthCheck)
			r.Get("/schedule", health.Schedule)
			r.Get("/outputs", outputs.List)
			r.Mount("/runs", NewRunsHandler(ctx, d.Runner, logger).Routes())
		})
		r.Handle("/outputs/*", outputs.Files())
	})

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	return r
}

// NewServer creates the HTTP server for handler.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
