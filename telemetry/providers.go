package telemetry

import (
	"context"
	"github.com/agoda-com/opentelemetry-logs-go/exporters/otlp/otlplogs"
	"github.com/agoda-com/opentelemetry-logs-go/exporters/otlp/otlplogs/otlplogsgrpc"
	"github.com/agoda-com/opentelemetry-logs-go/exporters/stdout/stdoutlogs"
	sdklogs "github.com/agoda-com/opentelemetry-logs-go/sdk/logs"
	"go.opentelemetry.io/contrib/detectors/aws/lambda"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"io"
	"log/slog"
	"os"
)

func NewLambdaResource(ctx context.Context, serviceName string) (*sdkresource.Resource, error) {
	return sdkresource.New(
		ctx,
		sdkresource.WithDetectors(lambda.NewResourceDetector()),
		sdkresource.WithAttributes(semconv.ServiceName(serviceName)),
	)
}

func NewLocalResource(ctx context.Context, serviceName string) (*sdkresource.Resource, error) {
	return sdkresource.New(
		ctx,
		sdkresource.WithAttributes(semconv.ServiceName(serviceName)),
	)
}

func NewLambdaTracerProvider(ctx context.Context, resource *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithIDGenerator(xray.NewIDGenerator()),
		sdktrace.WithResource(resource),
	), nil
}

func NewLocalTracerProvider(ctx context.Context, resource *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(io.Discard))
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource),
	), nil
}

func NewLambdaLoggerProvider(ctx context.Context, resource *sdkresource.Resource) (*sdklogs.LoggerProvider, error) {
	client := otlplogsgrpc.NewClient(otlplogsgrpc.WithInsecure())
	exp, err := otlplogs.NewExporter(ctx, otlplogs.WithClient(client))
	if err != nil {
		return nil, err
	}

	return sdklogs.NewLoggerProvider(
		sdklogs.WithBatcher(exp),
		sdklogs.WithResource(resource),
	), nil
}

func NewLocalLoggerProvider(ctx context.Context, resource *sdkresource.Resource) (*sdklogs.LoggerProvider, error) {
	exp, err := stdoutlogs.NewExporter(stdoutlogs.WithWriter(os.Stdout))
	if err != nil {
		return nil, err
	}

	return sdklogs.NewLoggerProvider(
		sdklogs.WithBatcher(exp),
		sdklogs.WithResource(resource),
	), nil
}

func Error(err error) slog.Attr {
	return slog.String("err", err.Error())
}
