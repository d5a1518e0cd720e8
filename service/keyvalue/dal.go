// Package keyvalue is the DynamoDB data access layer: an idempotent
// ensure-table routine and a put/get/update round trip over a single demo
// item. Item deletion is deliberately skipped to preserve demo data.
package keyvalue

import (
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gofrs/uuid/v5"
	"github.com/lumigo-io/lambda-telemetry-demo/service"
	"github.com/lumigo-io/lambda-telemetry-demo/telemetry"
	"time"
)

const deleteSkipReason = "data preservation requested - keeping items in table"

var ErrTableNotReady = errors.New("table is not ready")

// Client is the subset of the DynamoDB API this DAL needs. *dynamodb.Client
// satisfies it; tests inject fakes.
type Client interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

type Item struct {
	ID        string
	Data      string
	Timestamp time.Time
	Status    string
}

type Result struct {
	TableUsed       string `json:"table_used"`
	ItemID          string `json:"item_id"`
	OperationsCount int    `json:"operations_count"`
	DeleteStatus    string `json:"delete_status"`
}

type DAL struct {
	client       Client
	sel          service.Selection
	waitTimeout  time.Duration
	waiterOptFns []func(*dynamodb.TableExistsWaiterOptions)
}

func NewDAL(client Client, sel service.Selection, waitTimeout time.Duration, waiterOptFns ...func(*dynamodb.TableExistsWaiterOptions)) *DAL {
	return &DAL{
		client:       client,
		sel:          sel,
		waitTimeout:  waitTimeout,
		waiterOptFns: waiterOptFns,
	}
}

func (d *DAL) TableName() string {
	return d.sel.Selected
}

// EnsureTable checks the selected table and creates it when missing,
// tolerating a concurrent creator. It returns true once the table is ACTIVE
// and blocks at most for the configured wait timeout.
func (d *DAL) EnsureTable(ctx context.Context) (bool, error) {
	out, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.TableName()),
	})

	if err == nil {
		switch out.Table.TableStatus {
		case types.TableStatusActive:
			return true, nil

		case types.TableStatusCreating, types.TableStatusUpdating:
			return d.waitActive(ctx)

		default:
			return false, fmt.Errorf("table %s has unexpected status %s", d.TableName(), out.Table.TableStatus)
		}
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return false, fmt.Errorf("failed to describe table %s: %w", d.TableName(), err)
	}

	_, err = d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.TableName()),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})

	if err != nil {
		// a concurrent creator got there first; that is a success
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return false, fmt.Errorf("failed to create table %s: %w", d.TableName(), err)
		}
	}

	return d.waitActive(ctx)
}

func (d *DAL) waitActive(ctx context.Context) (bool, error) {
	waiter := dynamodb.NewTableExistsWaiter(d.client, d.waiterOptFns...)
	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.TableName()),
	}, d.waitTimeout)

	if err != nil {
		return false, fmt.Errorf("table %s did not become active within %s: %w", d.TableName(), d.waitTimeout, err)
	}

	return true, nil
}

func (d *DAL) PutItem(ctx context.Context, item Item) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.TableName()),
		Item: map[string]types.AttributeValue{
			"id":        &types.AttributeValueMemberS{Value: item.ID},
			"data":      &types.AttributeValueMemberS{Value: item.Data},
			"timestamp": &types.AttributeValueMemberS{Value: item.Timestamp.Format(time.RFC3339)},
			"status":    &types.AttributeValueMemberS{Value: item.Status},
		},
	})

	return err
}

func (d *DAL) GetItem(ctx context.Context, id string) (Item, bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.TableName()),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})

	if err != nil {
		return Item{}, false, err
	}

	if out.Item == nil {
		return Item{}, false, nil
	}

	item := Item{ID: id}
	if v, ok := out.Item["data"].(*types.AttributeValueMemberS); ok {
		item.Data = v.Value
	}
	if v, ok := out.Item["status"].(*types.AttributeValueMemberS); ok {
		item.Status = v.Value
	}
	if v, ok := out.Item["timestamp"].(*types.AttributeValueMemberS); ok {
		item.Timestamp, _ = time.Parse(time.RFC3339, v.Value)
	}

	return item, true, nil
}

func (d *DAL) UpdateItemStatus(ctx context.Context, id, status string, at time.Time) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.TableName()),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET #status = :status, #updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status":     "status",
			"#updated_at": "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: status},
			":updated_at": &types.AttributeValueMemberS{Value: at.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})

	return err
}

// DeleteItem never touches the table: deleting demo items is skipped so the
// data stays inspectable between invocations.
func (d *DAL) DeleteItem(ctx context.Context, id string) service.Record {
	return service.Skip(ctx, "dynamodb_delete_item", d.TableName(), deleteSkipReason)
}

// DeleteTable drops the selected table entirely. This is an administrative
// cleanup operation, not part of the item round trip; an already-absent
// table counts as success.
func (d *DAL) DeleteTable(ctx context.Context) error {
	return service.Observe(ctx, "dynamodb_delete_table", d.TableName(), func(ctx context.Context) error {
		_, err := d.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(d.TableName()),
		})

		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil
			}

			return fmt.Errorf("failed to delete table %s: %w", d.TableName(), err)
		}

		return nil
	})
}

// Run performs the full item round trip against the selected table.
func (d *DAL) Run(ctx context.Context) (Result, error) {
	telemetry.SetExecutionTag(ctx, "database", "DynamoDB")
	telemetry.SetExecutionTag(ctx, "database_table", d.TableName())

	ready, err := service.ObserveValue(ctx, "dynamodb_ensure_table", d.TableName(), d.EnsureTable)
	if err != nil {
		return Result{}, err
	}
	if !ready {
		return Result{}, fmt.Errorf("%w: %s", ErrTableNotReady, d.TableName())
	}

	id, err := uuid.NewV4()
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	item := Item{
		ID:        id.String(),
		Data:      "Sample data for CRUD demonstration",
		Timestamp: now,
		Status:    "active",
	}

	ops := 0

	if err := service.Observe(ctx, "dynamodb_create_item", d.TableName(), func(ctx context.Context) error {
		return d.PutItem(ctx, item)
	}); err != nil {
		return Result{}, err
	}
	ops++

	if _, err := service.ObserveValue(ctx, "dynamodb_read_item", d.TableName(), func(ctx context.Context) (Item, error) {
		it, ok, err := d.GetItem(ctx, item.ID)
		if err == nil && !ok {
			return it, fmt.Errorf("item %s not found after create", item.ID)
		}
		return it, err
	}); err != nil {
		return Result{}, err
	}
	ops++

	if err := service.Observe(ctx, "dynamodb_update_item", d.TableName(), func(ctx context.Context) error {
		return d.UpdateItemStatus(ctx, item.ID, "updated", time.Now().UTC())
	}); err != nil {
		return Result{}, err
	}
	ops++

	rec := d.DeleteItem(ctx, item.ID)
	ops++

	return Result{
		TableUsed:       d.TableName(),
		ItemID:          item.ID,
		OperationsCount: ops,
		DeleteStatus:    string(rec.Status),
	}, nil
}
