package main

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/its-felix/shine"
	"github.com/lumigo-io/lambda-telemetry-demo/service"
	"github.com/lumigo-io/lambda-telemetry-demo/service/keyvalue"
	"github.com/lumigo-io/lambda-telemetry-demo/service/objectstore"
	"github.com/lumigo-io/lambda-telemetry-demo/service/posts"
	"github.com/lumigo-io/lambda-telemetry-demo/service/relational"
	"github.com/lumigo-io/lambda-telemetry-demo/telemetry"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	CategoryAPI         = "api_operations"
	CategoryObjectStore = "s3_operations"
	CategoryKeyValue    = "database_operations"
	CategoryRelational  = "rds_operations"
)

type Event struct {
	Data      string          `json:"data,omitempty"`
	Actions   map[string]bool `json:"actions,omitempty"`
	Source    string          `json:"source,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Test      *bool           `json:"test,omitempty"`
}

// ActionEnabled reports whether a category should run. Absent actions mean
// everything runs.
func (e Event) ActionEnabled(category string) bool {
	if e.Actions == nil {
		return true
	}

	enabled, ok := e.Actions[category]
	return !ok || enabled
}

type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type responseBody struct {
	Message   string `json:"message"`
	APIData   any    `json:"api_data"`
	S3Data    any    `json:"s3_data"`
	DBData    any    `json:"db_data"`
	RDSData   any    `json:"rds_data"`
	Result    string `json:"result"`
	RequestID string `json:"request_id"`
}

type Handler struct {
	cfg         Config
	postsClient *posts.Client
	s3Client    objectstore.Client
	kvClient    keyvalue.Client
	db          relational.Querier

	now            func() time.Time
	kvWaiterOptFns []func(*dynamodb.TableExistsWaiterOptions)
	s3WaiterOptFns []func(*s3.BucketExistsWaiterOptions)
}

type HandlerOption func(h *Handler)

func WithClock(fn func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.now = fn
	}
}

func WithTableWaiterOptions(optFns ...func(*dynamodb.TableExistsWaiterOptions)) HandlerOption {
	return func(h *Handler) {
		h.kvWaiterOptFns = optFns
	}
}

func WithBucketWaiterOptions(optFns ...func(*s3.BucketExistsWaiterOptions)) HandlerOption {
	return func(h *Handler) {
		h.s3WaiterOptFns = optFns
	}
}

func NewHandler(cfg Config, httpClient *http.Client, s3Client objectstore.Client, kvClient keyvalue.Client, db relational.Querier, options ...HandlerOption) *Handler {
	h := &Handler{
		cfg:         cfg,
		postsClient: posts.NewClient(httpClient, cfg.APIBaseURL),
		s3Client:    s3Client,
		kvClient:    kvClient,
		db:          db,
		now:         time.Now,
	}

	for _, opt := range options {
		opt(h)
	}

	return h
}

// Invoke is the Lambda entry point. Every category failure is contained
// within its category; only a failure of the handler itself (response
// marshalling, panics) produces a 500.
func (h *Handler) Invoke(ctx context.Context, event Event) (res Response, err error) {
	requestID := requestIDFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			res = errorResponse(ctx, requestID, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	res, invokeErr := h.invoke(ctx, event, requestID)
	if invokeErr != nil {
		return errorResponse(ctx, requestID, invokeErr), nil
	}

	return res, nil
}

func (h *Handler) invoke(ctx context.Context, event Event, requestID string) (Response, error) {
	tagEvent(ctx, event)

	now := h.now()

	chAPI := h.runCategory(ctx, event, CategoryAPI, "API_OPERATION_FAILED", h.apiOperations(now))
	chS3 := h.runCategory(ctx, event, CategoryObjectStore, "S3_OPERATION_FAILED", h.s3Operations(now))
	chDB := h.runCategory(ctx, event, CategoryKeyValue, "DATABASE_OPERATION_FAILED", h.databaseOperations(now))
	chRDS := h.runCategory(ctx, event, CategoryRelational, "RDS_OPERATION_FAILED", h.rdsOperations())

	body := responseBody{
		Message:   "Lambda function executed successfully",
		APIData:   <-chAPI,
		S3Data:    <-chS3,
		DBData:    <-chDB,
		RDSData:   <-chRDS,
		Result:    processData(event),
		RequestID: requestID,
	}

	telemetry.SetExecutionTag(ctx, "processing_status", "completed")

	b, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal response body: %w", err)
	}

	return Response{
		StatusCode: http.StatusOK,
		Body:       string(b),
	}, nil
}

// runCategory starts one category workflow in its own goroutine. Categories
// share the invocation context but no errgroup: a failure in one must never
// cancel the others.
func (h *Handler) runCategory(ctx context.Context, event Event, category, errorType string, fn func(ctx context.Context) (any, error)) <-chan any {
	ch := make(chan any, 1)

	if !event.ActionEnabled(category) {
		service.Skip(ctx, category, category, "disabled via event actions")
		ch <- map[string]string{"status": "skipped"}
		return ch
	}

	go func() {
		defer close(ch)

		// a panicking category must degrade to its error result, not take
		// down the other categories with the process
		defer func() {
			if r := recover(); r != nil {
				ch <- categoryError(ctx, category, errorType, fmt.Errorf("panic: %v", r))
			}
		}()

		res := shine.NewResult(fn(ctx))
		if res.IsErr() {
			ch <- categoryError(ctx, category, errorType, res.Err().Unwrap())
			return
		}

		ch <- res.Unwrap()
	}()

	return ch
}

func categoryError(ctx context.Context, category, errorType string, err error) map[string]string {
	telemetry.RecordProgrammaticError(ctx, errorType, err.Error())
	slog.Default().ErrorContext(ctx, "category workflow failed",
		slog.String("category", category),
		telemetry.Error(err),
	)

	return map[string]string{"error": err.Error()}
}

func (h *Handler) apiOperations(now time.Time) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		sel, err := service.Select(h.postsClient.Endpoints(h.cfg.ReplicaCount), now)
		if err != nil {
			return nil, err
		}

		return posts.NewDAL(h.postsClient, sel).Run(ctx)
	}
}

func (h *Handler) s3Operations(now time.Time) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		sel, err := service.SelectNames(h.cfg.BucketName, h.cfg.ReplicaCount, now)
		if err != nil {
			return nil, err
		}

		return objectstore.NewDAL(h.s3Client, sel, h.cfg.ResourceWaitTimeout, h.s3WaiterOptFns...).Run(ctx)
	}
}

func (h *Handler) databaseOperations(now time.Time) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		sel, err := service.SelectNames(h.cfg.TableName, h.cfg.ReplicaCount, now)
		if err != nil {
			return nil, err
		}

		return keyvalue.NewDAL(h.kvClient, sel, h.cfg.ResourceWaitTimeout, h.kvWaiterOptFns...).Run(ctx)
	}
}

func (h *Handler) rdsOperations() func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return relational.NewDAL(h.db, h.cfg.RelationalTimeout).Run(ctx)
	}
}

func processData(event Event) string {
	if event.Data == "" {
		return "No data to process"
	}

	return "Processed: " + strings.ToUpper(event.Data)
}

func tagEvent(ctx context.Context, event Event) {
	if event.Data != "" {
		telemetry.SetExecutionTag(ctx, "has_data", "true")
		telemetry.SetExecutionTag(ctx, "data_length", strconv.Itoa(len(event.Data)))
	} else {
		telemetry.SetExecutionTag(ctx, "has_data", "false")
	}

	if event.Test != nil {
		telemetry.SetExecutionTag(ctx, "is_test", strconv.FormatBool(*event.Test))
	}

	if event.Source != "" {
		telemetry.SetExecutionTag(ctx, "event_source", event.Source)
	}

	if event.Timestamp != "" {
		telemetry.SetExecutionTag(ctx, "event_timestamp", event.Timestamp)
	}
}

func errorResponse(ctx context.Context, requestID string, err error) Response {
	msg := "Lambda execution failed: " + err.Error()

	telemetry.RecordProgrammaticError(ctx, "LAMBDA_EXECUTION_FAILED", msg)
	slog.Default().ErrorContext(ctx, "invocation failed", telemetry.Error(err))

	b, marshalErr := json.Marshal(map[string]string{
		"error":      msg,
		"request_id": requestID,
	})

	if marshalErr != nil {
		b = []byte(`{"error": "Lambda execution failed"}`)
	}

	return Response{
		StatusCode: http.StatusInternalServerError,
		Body:       string(b),
	}
}

func requestIDFromContext(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}

	return ""
}
