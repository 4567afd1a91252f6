package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ONEcampaign/interest-rates/internal/config"
)

const (
	ServiceName = "interest-rates-pipelines"
	MeterName   = "github.com/ONEcampaign/interest-rates"
)

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Metrics        *PipelineMetrics
	logger         *slog.Logger
}

// InitializeOTel initializes OpenTelemetry. Disabled providers fall back to
// no-op implementations so callers never need nil checks.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	return initializeOTel(cfg, os.Stdout, logger)
}

func initializeOTel(cfg config.TelemetryConfig, traceOut io.Writer, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", ServiceName),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(config.AppVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Tracer:         tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:          metricnoop.NewMeterProvider().Meter(MeterName),
		PrometheusHTTP: http.NotFoundHandler(),
		logger:         logger,
	}

	if cfg.EnableTracing {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(config.AppVersion))
		otel.SetTracerProvider(tp)
	}

	if cfg.EnableMetrics {
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(config.AppVersion))
		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metrics, err := NewPipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	providers.Metrics = metrics

	return providers, nil
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PipelineMetrics are the instruments recorded by the pipelines.
type PipelineMetrics struct {
	RunsTotal      metric.Int64Counter
	StepDuration   metric.Float64Histogram
	StepErrors     metric.Int64Counter
	RowsWritten    metric.Int64Counter
	SourceFetches  metric.Int64Counter
	SourceFailures metric.Int64Counter
}

// NewPipelineMetrics registers the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	runs, err := meter.Int64Counter("pipeline_runs_total",
		metric.WithDescription("Total number of pipeline runs"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("pipeline_step_duration_seconds",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	stepErrors, err := meter.Int64Counter("pipeline_step_errors_total",
		metric.WithDescription("Total number of failed pipeline steps"))
	if err != nil {
		return nil, err
	}
	rows, err := meter.Int64Counter("output_rows_written_total",
		metric.WithDescription("Total number of rows written to chart outputs"))
	if err != nil {
		return nil, err
	}
	fetches, err := meter.Int64Counter("source_fetches_total",
		metric.WithDescription("Total number of source reads, by origin"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("source_failures_total",
		metric.WithDescription("Total number of failed source requests"))
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		RunsTotal:      runs,
		StepDuration:   duration,
		StepErrors:     stepErrors,
		RowsWritten:    rows,
		SourceFetches:  fetches,
		SourceFailures: failures,
	}, nil
}

// NoopPipelineMetrics returns instruments that record nothing.
func NoopPipelineMetrics() *PipelineMetrics {
	m, _ := NewPipelineMetrics(metricnoop.NewMeterProvider().Meter(MeterName))
	return m
}

// RecordRun records a finished pipeline run.
func (m *PipelineMetrics) RecordRun(ctx context.Context, group string, ok bool) {
	m.RunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("group", group),
		attribute.Bool("success", ok),
	))
}

// RecordStep records one step execution.
func (m *PipelineMetrics) RecordStep(ctx context.Context, step string, seconds float64, err error) {
	attrs := metric.WithAttributes(attribute.String("step", step))
	m.StepDuration.Record(ctx, seconds, attrs)
	if err != nil {
		m.StepErrors.Add(ctx, 1, attrs)
	}
}

// RecordRows records rows written to an output file.
func (m *PipelineMetrics) RecordRows(ctx context.Context, output string, rows int) {
	m.RowsWritten.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("output", output)))
}

// RecordFetch records a source read served from origin ("network", "cache"
// or "stale").
func (m *PipelineMetrics) RecordFetch(ctx context.Context, source, origin string) {
	m.SourceFetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("origin", origin),
	))
}

// RecordFailure records a failed request to source.
func (m *PipelineMetrics) RecordFailure(ctx context.Context, source string) {
	m.SourceFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
