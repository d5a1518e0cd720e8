package main

import (
	"context"
	"errors"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/exaring/otelpgx"
	pgxuuid "github.com/jackc/pgx-gofrs-uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/lumigo-io/lambda-telemetry-demo/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"net/http"
)

const serviceName = "LumigoTelemetryDemoLambda"

type Option func(app *echo.Echo)

func WithTelemetry(ctx context.Context, serviceName string, fn func(ctx context.Context, t *telemetry.Telemetry) error, options ...telemetry.Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t, err := telemetry.New(ctx, serviceName, options...)
	if err != nil {
		return err
	}

	err = fn(ctx, t)
	if shutdownErr := t.Shutdown(context.Background()); shutdownErr != nil {
		err = errors.Join(err, shutdownErr)
	}

	return err
}

// WithHandler builds the AWS clients, the pgx pool and the outbound HTTP
// client, and hands a fully wired Handler to fn. All clients carry OTel
// instrumentation.
func WithHandler(ctx context.Context, cfg Config, fn func(ctx context.Context, h *Handler) error) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}

	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	s3Client := s3.NewFromConfig(awsCfg)
	kvClient := dynamodb.NewFromConfig(awsCfg)

	return withPgx(ctx, cfg, func(pool *pgxpool.Pool) error {
		httpClient := &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.HTTPTimeout,
		}

		return fn(ctx, NewHandler(cfg, httpClient, s3Client, kvClient, pool))
	})
}

func newPgx(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, err
	}

	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "lambda-telemetry-demo"
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func withPgx(ctx context.Context, cfg Config, fn func(pool *pgxpool.Pool) error) error {
	pool, err := newPgx(ctx, cfg)
	if err != nil {
		return err
	}

	defer pool.Close()

	return fn(pool)
}

// newEchoServer exposes the handler over HTTP for local development:
// POST /invoke takes the same event the Lambda does.
func newEchoServer(h *Handler, options ...Option) *echo.Echo {
	app := echo.New()

	for _, opt := range options {
		opt(app)
	}

	app.Use(otelecho.Middleware(serviceName))

	app.POST("/invoke", func(c echo.Context) error {
		var event Event
		if err := c.Bind(&event); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err)
		}

		res, err := h.Invoke(c.Request().Context(), event)
		if err != nil {
			return err
		}

		return c.JSONBlob(res.StatusCode, []byte(res.Body))
	})

	return app
}

func WithFlusher(flusher otellambda.Flusher) Option {
	return func(app *echo.Echo) {
		app.Pre(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				defer flusher.ForceFlush(c.Request().Context())
				return next(c)
			}
		})
	}
}
