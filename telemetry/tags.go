package telemetry

import (
	"context"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// executionTagPrefix is required by Lumigo for span attributes to surface as
// searchable execution tags.
const executionTagPrefix = "lumigo.execution_tags."

// SetExecutionTag attaches a key/value annotation to the active span so the
// invocation can be filtered and searched by it later. It is a no-op when no
// span is recording.
func SetExecutionTag(ctx context.Context, key, value string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.String(executionTagPrefix+key, value))
}

// RecordProgrammaticError attaches a structured error record to the active
// span, distinct from a returned error. The span is marked as errored but the
// invocation itself keeps going.
func RecordProgrammaticError(ctx context.Context, errorType, message string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(
		attribute.Bool("error", true),
		attribute.String("lumigo.error.type", errorType),
		attribute.String("lumigo.error.message", message),
	)
	span.SetStatus(codes.Error, message)
}
