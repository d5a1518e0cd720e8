// Package objectstore is the S3 data access layer: an idempotent
// ensure-bucket routine and an upload/list/delete object lifecycle.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gofrs/uuid/v5"
	"github.com/lumigo-io/lambda-telemetry-demo/service"
	"github.com/lumigo-io/lambda-telemetry-demo/telemetry"
	"golang.org/x/sync/errgroup"
	"time"
)

const sampleObjectCount = 3

var ErrBucketNotReady = errors.New("bucket is not ready")

// Client is the subset of the S3 API this DAL needs. *s3.Client satisfies
// it; tests inject fakes.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ Client = (*s3.Client)(nil)

type Result struct {
	BucketUsed     string `json:"bucket_used"`
	ObjectsCreated int    `json:"objects_created"`
	ObjectsDeleted int    `json:"objects_deleted"`
}

type DAL struct {
	client       Client
	sel          service.Selection
	waitTimeout  time.Duration
	waiterOptFns []func(*s3.BucketExistsWaiterOptions)
}

func NewDAL(client Client, sel service.Selection, waitTimeout time.Duration, waiterOptFns ...func(*s3.BucketExistsWaiterOptions)) *DAL {
	return &DAL{
		client:       client,
		sel:          sel,
		waitTimeout:  waitTimeout,
		waiterOptFns: waiterOptFns,
	}
}

func (d *DAL) BucketName() string {
	return d.sel.Selected
}

// EnsureBucket checks the selected bucket and creates it when missing,
// tolerating a concurrent creator. It returns true once the bucket is
// reachable and blocks at most for the configured wait timeout.
func (d *DAL) EnsureBucket(ctx context.Context) (bool, error) {
	_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(d.BucketName()),
	})

	if err == nil {
		return true, nil
	}

	if !isBucketNotFound(err) {
		return false, fmt.Errorf("failed to check bucket %s: %w", d.BucketName(), err)
	}

	_, err = d.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(d.BucketName()),
	})

	if err != nil && !isBucketAlreadyExists(err) {
		return false, fmt.Errorf("failed to create bucket %s: %w", d.BucketName(), err)
	}

	waiter := s3.NewBucketExistsWaiter(d.client, d.waiterOptFns...)
	err = waiter.Wait(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(d.BucketName()),
	}, d.waitTimeout)

	if err != nil {
		return false, fmt.Errorf("bucket %s did not become available within %s: %w", d.BucketName(), d.waitTimeout, err)
	}

	return true, nil
}

// UploadSampleObjects writes a small batch of JSON objects under the
// operation prefix. The uploads are independent and run concurrently.
func (d *DAL) UploadSampleObjects(ctx context.Context, operationID string, at time.Time) (int, error) {
	g, ctx := errgroup.WithContext(ctx)

	for i := 1; i <= sampleObjectCount; i++ {
		key := objectKey(operationID, i)
		body, err := json.Marshal(map[string]string{
			"operation_id": operationID,
			"object":       key,
			"created_at":   at.Format(time.RFC3339),
		})
		if err != nil {
			return 0, err
		}

		g.Go(func() error {
			return service.Observe(ctx, "s3_upload_object", d.BucketName(), func(ctx context.Context) error {
				_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
					Bucket:      aws.String(d.BucketName()),
					Key:         aws.String(key),
					Body:        bytes.NewReader(body),
					ContentType: aws.String("application/json"),
				})
				return err
			})
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	return sampleObjectCount, nil
}

func (d *DAL) ListObjects(ctx context.Context, operationID string) ([]string, error) {
	out, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.BucketName()),
		Prefix: aws.String(objectPrefix(operationID)),
	})

	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}

	return keys, nil
}

func (d *DAL) DeleteObjects(ctx context.Context, keys []string) (int, error) {
	deleted := 0
	for _, key := range keys {
		_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.BucketName()),
			Key:    aws.String(key),
		})

		if err != nil {
			return deleted, err
		}

		deleted++
	}

	return deleted, nil
}

// Run performs the full object lifecycle against the selected bucket.
func (d *DAL) Run(ctx context.Context) (Result, error) {
	telemetry.SetExecutionTag(ctx, "s3_bucket", d.BucketName())

	ready, err := service.ObserveValue(ctx, "s3_ensure_bucket", d.BucketName(), d.EnsureBucket)
	if err != nil {
		return Result{}, err
	}
	if !ready {
		return Result{}, fmt.Errorf("%w: %s", ErrBucketNotReady, d.BucketName())
	}

	opID, err := uuid.NewV4()
	if err != nil {
		return Result{}, err
	}

	created, err := d.UploadSampleObjects(ctx, opID.String(), time.Now().UTC())
	if err != nil {
		return Result{}, err
	}

	keys, err := service.ObserveValue(ctx, "s3_list_objects", d.BucketName(), func(ctx context.Context) ([]string, error) {
		return d.ListObjects(ctx, opID.String())
	})
	if err != nil {
		return Result{}, err
	}

	deleted, err := service.ObserveValue(ctx, "s3_delete_objects", d.BucketName(), func(ctx context.Context) (int, error) {
		return d.DeleteObjects(ctx, keys)
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		BucketUsed:     d.BucketName(),
		ObjectsCreated: created,
		ObjectsDeleted: deleted,
	}, nil
}

func objectPrefix(operationID string) string {
	return "demo/" + operationID + "/"
}

func objectKey(operationID string, n int) string {
	return fmt.Sprintf("%sobject-%d.json", objectPrefix(operationID), n)
}

func isBucketNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}

	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}

func isBucketAlreadyExists(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}

	var exists *types.BucketAlreadyExists
	return errors.As(err, &exists)
}
