//go:build !lambda

package main

import (
	"context"
	"fmt"
	"github.com/lumigo-io/lambda-telemetry-demo/telemetry"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := WithTelemetry(
		ctx,
		serviceName,
		func(ctx context.Context, t *telemetry.Telemetry) error {
			return WithHandler(ctx, LoadConfig(), func(ctx context.Context, h *Handler) error {
				app := newEchoServer(h, WithFlusher(t))

				go func() {
					<-ctx.Done()
					if err := app.Shutdown(context.Background()); err != nil {
						fmt.Printf("error shutting down echo server: %v\n", err)
					} else {
						fmt.Println("shutdown complete")
					}
				}()

				return app.Start(":8090")
			})
		},
		telemetry.WithResource(telemetry.NewLocalResource),
		telemetry.WithTracerProvider(telemetry.NewLocalTracerProvider),
		telemetry.WithLoggerProvider(telemetry.NewLocalLoggerProvider),
	)

	if err != nil {
		panic(err)
	}
}
