package keyvalue

import (
	"context"
	"errors"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lumigo-io/lambda-telemetry-demo/internal/test"
	"github.com/lumigo-io/lambda-telemetry-demo/service"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func newTestDAL(client Client) *DAL {
	sel := service.Selection{
		Candidates: []string{"example-table"},
		Selected:   "example-table",
	}

	return NewDAL(client, sel, 50*time.Millisecond, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = time.Millisecond
		o.MaxDelay = 2 * time.Millisecond
	})
}

func TestEnsureTableAlreadyActive(t *testing.T) {
	fake := &test.FakeKeyValue{Exists: true, Status: types.TableStatusActive}

	ready, err := newTestDAL(fake).EnsureTable(context.Background())

	assert.NoError(t, err)
	assert.True(t, ready)
	assert.Zero(t, fake.CreateCalls)
}

func TestEnsureTableCreatesMissingTable(t *testing.T) {
	fake := &test.FakeKeyValue{}
	dal := newTestDAL(fake)

	ready, err := dal.EnsureTable(context.Background())

	assert.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 1, fake.CreateCalls)

	// a second call finds the table and must not create again
	ready, err = dal.EnsureTable(context.Background())

	assert.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 1, fake.CreateCalls)
}

func TestEnsureTableWaitsForCreatingTable(t *testing.T) {
	fake := &test.FakeKeyValue{
		Exists:        true,
		Status:        types.TableStatusCreating,
		ActivateAfter: 2,
	}

	ready, err := newTestDAL(fake).EnsureTable(context.Background())

	assert.NoError(t, err)
	assert.True(t, ready)
	assert.Zero(t, fake.CreateCalls)
}

func TestEnsureTableFailsWhenTableNeverBecomesActive(t *testing.T) {
	fake := &test.FakeKeyValue{
		Exists: true,
		Status: types.TableStatusCreating,
	}

	ready, err := newTestDAL(fake).EnsureTable(context.Background())

	assert.Error(t, err)
	assert.False(t, ready)
}

// lostCreateRaceClient simulates a concurrent creator winning the race: the
// create call fails with ResourceInUseException and the table exists from
// then on.
type lostCreateRaceClient struct {
	*test.FakeKeyValue
}

func (c *lostCreateRaceClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	c.FakeKeyValue.Exists = true
	c.FakeKeyValue.Status = types.TableStatusActive

	return nil, &types.ResourceInUseException{}
}

func TestEnsureTableToleratesConcurrentCreator(t *testing.T) {
	fake := &lostCreateRaceClient{FakeKeyValue: &test.FakeKeyValue{}}

	ready, err := newTestDAL(fake).EnsureTable(context.Background())

	assert.NoError(t, err)
	assert.True(t, ready)
}

func TestEnsureTablePropagatesOtherErrors(t *testing.T) {
	expected := errors.New("access denied")
	fake := &test.FakeKeyValue{DescribeErr: expected}

	ready, err := newTestDAL(fake).EnsureTable(context.Background())

	assert.ErrorIs(t, err, expected)
	assert.False(t, ready)
}

func TestRunKeepsItemsInTable(t *testing.T) {
	fake := &test.FakeKeyValue{Exists: true, Status: types.TableStatusActive}

	res, err := newTestDAL(fake).Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "example-table", res.TableUsed)
	assert.NotEmpty(t, res.ItemID)
	assert.Equal(t, 4, res.OperationsCount)
	assert.Equal(t, string(service.StatusSkipped), res.DeleteStatus)

	// the delete is skipped on purpose, the item must survive the run
	assert.Zero(t, fake.DeleteCalls)

	item, ok := fake.Items[res.ItemID]
	if assert.True(t, ok) {
		status, _ := item["status"].(*types.AttributeValueMemberS)
		if assert.NotNil(t, status) {
			assert.Equal(t, "updated", status.Value)
		}
	}
}

func TestEnsureTableCreateFailurePropagates(t *testing.T) {
	expected := errors.New("create denied")
	fake := &test.FakeKeyValue{CreateErr: expected}

	ready, err := newTestDAL(fake).EnsureTable(context.Background())

	assert.ErrorIs(t, err, expected)
	assert.False(t, ready)
}

func TestDeleteTable(t *testing.T) {
	fake := &test.FakeKeyValue{Exists: true, Status: types.TableStatusActive}
	dal := newTestDAL(fake)

	err := dal.DeleteTable(context.Background())

	assert.NoError(t, err)
	assert.False(t, fake.Exists)
	assert.Equal(t, 1, fake.DeleteTableCalls)

	// deleting an already-absent table is a success
	err = dal.DeleteTable(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 2, fake.DeleteTableCalls)
}

func TestDeleteTablePropagatesOtherErrors(t *testing.T) {
	expected := errors.New("access denied")
	fake := &test.FakeKeyValue{Exists: true, Status: types.TableStatusActive, DeleteTableErr: expected}

	err := newTestDAL(fake).DeleteTable(context.Background())

	assert.ErrorIs(t, err, expected)
}

func TestRunFailsWhenPutFails(t *testing.T) {
	expected := errors.New("put failed")
	fake := &test.FakeKeyValue{
		Exists: true,
		Status: types.TableStatusActive,
		PutErr: expected,
	}

	_, err := newTestDAL(fake).Run(context.Background())

	assert.ErrorIs(t, err, expected)
}

func TestRunFailsWhenReadFails(t *testing.T) {
	expected := errors.New("read failed")
	fake := &test.FakeKeyValue{
		Exists: true,
		Status: types.TableStatusActive,
		GetErr: expected,
	}

	_, err := newTestDAL(fake).Run(context.Background())

	assert.ErrorIs(t, err, expected)
}

func TestRunFailsWhenUpdateFails(t *testing.T) {
	expected := errors.New("update failed")
	fake := &test.FakeKeyValue{
		Exists:    true,
		Status:    types.TableStatusActive,
		UpdateErr: expected,
	}

	_, err := newTestDAL(fake).Run(context.Background())

	assert.ErrorIs(t, err, expected)
}
