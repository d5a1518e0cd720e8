package telemetry

import (
	"context"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"testing"
)

func newRecordedSpan(t *testing.T) (context.Context, *tracetest.SpanRecorder, func()) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	ctx, span := tp.Tracer("test").Start(context.Background(), "test-span")

	return ctx, sr, func() {
		span.End()
		assert.NoError(t, tp.Shutdown(context.Background()))
	}
}

func spanAttributes(sr *tracetest.SpanRecorder) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, span := range sr.Ended() {
		for _, kv := range span.Attributes() {
			attrs[kv.Key] = kv.Value
		}
	}

	return attrs
}

func TestSetExecutionTag(t *testing.T) {
	ctx, sr, done := newRecordedSpan(t)

	SetExecutionTag(ctx, "database", "DynamoDB")
	done()

	attrs := spanAttributes(sr)
	assert.Equal(t, "DynamoDB", attrs["lumigo.execution_tags.database"].AsString())
}

func TestSetExecutionTagWithoutSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		SetExecutionTag(context.Background(), "database", "DynamoDB")
	})
}

func TestRecordProgrammaticError(t *testing.T) {
	ctx, sr, done := newRecordedSpan(t)

	RecordProgrammaticError(ctx, "S3_OPERATION_FAILED", "bucket unavailable")
	done()

	attrs := spanAttributes(sr)
	assert.True(t, attrs["error"].AsBool())
	assert.Equal(t, "S3_OPERATION_FAILED", attrs["lumigo.error.type"].AsString())
	assert.Equal(t, "bucket unavailable", attrs["lumigo.error.message"].AsString())

	spans := sr.Ended()
	if assert.Len(t, spans, 1) {
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		assert.Equal(t, "bucket unavailable", spans[0].Status().Description)
	}
}

func TestRecordProgrammaticErrorWithoutSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordProgrammaticError(context.Background(), "SOME_ERROR", "message")
	})
}
