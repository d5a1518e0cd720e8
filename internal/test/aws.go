package test

import (
	"context"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"io"
	"strings"
	"sync"
)

// FakeKeyValue is an in-memory stand-in for the DynamoDB client, holding a
// single table. The zero value is a missing table.
type FakeKeyValue struct {
	mu sync.Mutex

	Exists bool
	Status dynamodbtypes.TableStatus
	Items  map[string]map[string]dynamodbtypes.AttributeValue

	// ActivateAfter promotes a CREATING table to ACTIVE after that many
	// DescribeTable calls. Zero means the status never changes on its own.
	ActivateAfter int

	CreateCalls      int
	DeleteCalls      int
	DeleteTableCalls int

	DescribeErr    error
	CreateErr      error
	PutErr         error
	GetErr         error
	UpdateErr      error
	DeleteTableErr error
}

func (f *FakeKeyValue) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.DescribeErr != nil {
		return nil, f.DescribeErr
	}

	if !f.Exists {
		return nil, &dynamodbtypes.ResourceNotFoundException{Message: aws.String("table not found")}
	}

	if f.ActivateAfter > 0 {
		f.ActivateAfter--
		if f.ActivateAfter == 0 {
			f.Status = dynamodbtypes.TableStatusActive
		}
	}

	return &dynamodb.DescribeTableOutput{
		Table: &dynamodbtypes.TableDescription{
			TableName:   params.TableName,
			TableStatus: f.Status,
		},
	}, nil
}

func (f *FakeKeyValue) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls++

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	if f.Exists {
		return nil, &dynamodbtypes.ResourceInUseException{Message: aws.String("table already exists")}
	}

	f.Exists = true
	if f.Status == "" {
		f.Status = dynamodbtypes.TableStatusActive
	}

	return &dynamodb.CreateTableOutput{}, nil
}

func (f *FakeKeyValue) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PutErr != nil {
		return nil, f.PutErr
	}

	if f.Items == nil {
		f.Items = make(map[string]map[string]dynamodbtypes.AttributeValue)
	}

	f.Items[itemID(params.Item)] = params.Item

	return &dynamodb.PutItemOutput{}, nil
}

func (f *FakeKeyValue) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}

	item, ok := f.Items[itemID(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}

	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *FakeKeyValue) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}

	item, ok := f.Items[itemID(params.Key)]
	if !ok {
		return nil, &dynamodbtypes.ResourceNotFoundException{Message: aws.String("item not found")}
	}

	if v, ok := params.ExpressionAttributeValues[":status"]; ok {
		item["status"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":updated_at"]; ok {
		item["updated_at"] = v
	}

	return &dynamodb.UpdateItemOutput{Attributes: item}, nil
}

func (f *FakeKeyValue) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DeleteCalls++
	delete(f.Items, itemID(params.Key))

	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *FakeKeyValue) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DeleteTableCalls++

	if f.DeleteTableErr != nil {
		return nil, f.DeleteTableErr
	}

	if !f.Exists {
		return nil, &dynamodbtypes.ResourceNotFoundException{Message: aws.String("table not found")}
	}

	f.Exists = false
	f.Status = ""
	f.Items = nil

	return &dynamodb.DeleteTableOutput{}, nil
}

func itemID(item map[string]dynamodbtypes.AttributeValue) string {
	if v, ok := item["id"].(*dynamodbtypes.AttributeValueMemberS); ok {
		return v.Value
	}

	return ""
}

// FakeObjectStore is an in-memory stand-in for the S3 client, holding a
// single bucket. The zero value is a missing bucket.
type FakeObjectStore struct {
	mu sync.Mutex

	Exists  bool
	Objects map[string][]byte

	CreateCalls int

	HeadErr   error
	CreateErr error
	PutErr    error
	ListErr   error
	DeleteErr error
}

func (f *FakeObjectStore) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.HeadErr != nil {
		return nil, f.HeadErr
	}

	if !f.Exists {
		return nil, &s3types.NotFound{Message: aws.String("bucket not found")}
	}

	return &s3.HeadBucketOutput{}, nil
}

func (f *FakeObjectStore) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls++

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	if f.Exists {
		return nil, &s3types.BucketAlreadyOwnedByYou{Message: aws.String("bucket already exists")}
	}

	f.Exists = true

	return &s3.CreateBucketOutput{}, nil
}

func (f *FakeObjectStore) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PutErr != nil {
		return nil, f.PutErr
	}

	if f.Objects == nil {
		f.Objects = make(map[string][]byte)
	}

	f.Objects[aws.ToString(params.Key)] = body

	return &s3.PutObjectOutput{}, nil
}

func (f *FakeObjectStore) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	out := &s3.ListObjectsV2Output{}
	for key := range f.Objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
		}
	}

	return out, nil
}

func (f *FakeObjectStore) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.DeleteErr != nil {
		return nil, f.DeleteErr
	}

	delete(f.Objects, aws.ToString(params.Key))

	return &s3.DeleteObjectOutput{}, nil
}
