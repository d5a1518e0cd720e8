//go:build lambda && lambda.norpc

package main

import (
	"context"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/lumigo-io/lambda-telemetry-demo/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
)

func main() {
	ctx := context.Background()

	err := WithTelemetry(
		ctx,
		serviceName,
		func(ctx context.Context, t *telemetry.Telemetry) error {
			return WithHandler(ctx, LoadConfig(), func(ctx context.Context, h *Handler) error {
				lambda.Start(otellambda.InstrumentHandler(h.Invoke, otellambda.WithTracerProvider(t.TracerProvider()), otellambda.WithFlusher(t)))

				return nil
			})
		},
		telemetry.WithResource(telemetry.NewLambdaResource),
		telemetry.WithTracerProvider(telemetry.NewLambdaTracerProvider),
		telemetry.WithLoggerProvider(telemetry.NewLambdaLoggerProvider),
	)

	if err != nil {
		panic(err)
	}
}
