package operations

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "github.com/ONEcampaign/interest-rates/operations"
)

// OperationTracer wraps runs and steps in spans.
type OperationTracer struct {
	tracer trace.Tracer
}

// NewOperationTracer uses the global tracer provider, which is a no-op
// unless tracing is enabled.
func NewOperationTracer() *OperationTracer {
	return &OperationTracer{tracer: otel.Tracer(TracerName)}
}

// TraceOperationExecution creates a span for the entire operation execution
func (pt *OperationTracer) TraceOperationExecution(ctx context.Context, operationID, group string, steps int) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.execute."+group,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("operation.group", group),
			attribute.Int("operation.steps", steps),
		),
	)
}

// TraceStageExecution creates a span for individual Step execution
func (pt *OperationTracer) TraceStageExecution(ctx context.Context, operationID, stageID string, frequency Frequency) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.step."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stageID),
			attribute.String("step.frequency", string(frequency)),
		),
	)
}

// EndSpan records err on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
