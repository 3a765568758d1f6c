package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name of the tracer for detection runs.
const TracerName = "dupdetect"

// Span attribute keys
const (
	AttrRunID         = "run_id"
	AttrEntityType    = "entity_type"
	AttrDetectionType = "detection_type"
	AttrRecords       = "records"
	AttrPairs         = "pairs"
	AttrBatchIndex    = "batch_index"
	AttrBatchSize     = "batch_size"
	AttrDryRun        = "dry_run"
	AttrErrorCode     = "error_code"
)

// Span names
const (
	SpanRun       = "dupdetect.run"
	SpanClear     = "dupdetect.clear"
	SpanLoad      = "dupdetect.load"
	SpanDetect    = "dupdetect.detect"
	SpanHeuristic = "dupdetect.heuristic"
	SpanPersist   = "dupdetect.persist"
	SpanBatch     = "dupdetect.persist.batch"
)

// Tracer starts spans for detection runs.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer from the global provider. Without a configured
// provider spans are no-ops.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// StartRunSpan starts the root span of a run.
func (t *Tracer) StartRunSpan(ctx context.Context, runID string, dryRun bool) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRun,
		trace.WithAttributes(
			attribute.String(AttrRunID, runID),
			attribute.Bool(AttrDryRun, dryRun),
		),
	)
}

// StartEntitySpan starts a span for one phase of one entity type's pass.
func (t *Tracer) StartEntitySpan(ctx context.Context, name, entityType string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{}
	if entityType != "" {
		attrs = append(attrs, attribute.String(AttrEntityType, entityType))
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartHeuristicSpan starts a span for one matcher.
func (t *Tracer) StartHeuristicSpan(ctx context.Context, entityType, detectionType string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanHeuristic,
		trace.WithAttributes(
			attribute.String(AttrEntityType, entityType),
			attribute.String(AttrDetectionType, detectionType),
		),
	)
}

// StartBatchSpan starts a span for one upsert batch.
func (t *Tracer) StartBatchSpan(ctx context.Context, entityType string, index, size int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanBatch,
		trace.WithAttributes(
			attribute.String(AttrEntityType, entityType),
			attribute.Int(AttrBatchIndex, index),
			attribute.Int(AttrBatchSize, size),
		),
	)
}

// EndSpan records err (if any) and ends the span.
func EndSpan(span trace.Span, err error, errorCode string) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errorCode != "" {
			span.SetAttributes(attribute.String(AttrErrorCode, errorCode))
		}
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
