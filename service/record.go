package service

import (
	"context"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"log/slog"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Record describes one attempt against an external resource. It is created
// when the attempt starts, finalized exactly once when it ends and never
// mutated afterwards; it exists purely for observability.
type Record struct {
	Kind        string
	Resource    string
	Status      Status
	ErrorDetail string
	StartedAt   time.Time
	Duration    time.Duration
}

// Observe wraps a single external call: record start, invoke, finalize,
// emit. The original error propagates to the caller untouched.
func Observe(ctx context.Context, kind, resource string, fn func(ctx context.Context) error) error {
	_, err := ObserveValue(ctx, kind, resource, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	return err
}

// ObserveValue is Observe for calls that produce a value.
func ObserveValue[T any](ctx context.Context, kind, resource string, fn func(ctx context.Context) (T, error)) (T, error) {
	rec := Record{
		Kind:      kind,
		Resource:  resource,
		StartedAt: time.Now(),
	}

	v, err := fn(ctx)

	rec.Duration = time.Since(rec.StartedAt)
	if err != nil {
		rec.Status = StatusFailure
		rec.ErrorDetail = err.Error()
	} else {
		rec.Status = StatusSuccess
	}

	emit(ctx, rec)

	return v, err
}

// Skip emits a record for an operation that was deliberately not performed.
func Skip(ctx context.Context, kind, resource, reason string) Record {
	rec := Record{
		Kind:        kind,
		Resource:    resource,
		Status:      StatusSkipped,
		ErrorDetail: reason,
		StartedAt:   time.Now(),
	}

	emit(ctx, rec)

	return rec
}

func emit(ctx context.Context, rec Record) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(rec.Kind, trace.WithAttributes(
			attribute.String("operation.resource", rec.Resource),
			attribute.String("operation.status", string(rec.Status)),
			attribute.Int64("operation.duration_ms", rec.Duration.Milliseconds()),
		))
	}

	attrs := []any{
		slog.String("kind", rec.Kind),
		slog.String("resource", rec.Resource),
		slog.String("status", string(rec.Status)),
		slog.Duration("duration", rec.Duration),
	}

	switch rec.Status {
	case StatusFailure:
		attrs = append(attrs, slog.String("err", rec.ErrorDetail))
		slog.Default().ErrorContext(ctx, "operation failed", attrs...)

	case StatusSkipped:
		attrs = append(attrs, slog.String("reason", rec.ErrorDetail))
		slog.Default().InfoContext(ctx, "operation skipped", attrs...)

	default:
		slog.Default().InfoContext(ctx, "operation complete", attrs...)
	}
}
