// Package dynamodb implements lock.LeaseStore on an Amazon DynamoDB table,
// so processes that share a blob store without sharing a database (for
// example an S3 export target) can still coordinate writers.
//
// Table schema:
//   - Partition key: lock_name (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name blobdir-locks \
//	  --attribute-definitions AttributeName=lock_name,AttributeType=S \
//	  --key-schema AttributeName=lock_name,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	acquireCondition = "attribute_not_exists(lock_name) OR expires_at < :now OR holder = :holder"
	holderCondition  = "holder = :holder"
)

// Client is the subset of the DynamoDB API used by Store.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store keeps one item per lock name. Conditional writes provide the
// compare-and-swap that makes lease takeover safe.
type Store struct {
	client Client
	table  string
	now    func() time.Time
}

// NewStore creates a Store on an existing client.
func NewStore(client Client, table string) *Store {
	return &Store{client: client, table: table, now: time.Now}
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, table, region string) (*Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewStore(dynamodb.NewFromConfig(cfg), table), nil
}

// TryAcquire implements lock.LeaseStore.
func (s *Store) TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	now := s.now()
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"lock_name":  &types.AttributeValueMemberS{Value: name},
			"holder":     &types.AttributeValueMemberS{Value: holder},
			"expires_at": millis(now.Add(ttl)),
		},
		ConditionExpression: aws.String(acquireCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":    millis(now),
			":holder": &types.AttributeValueMemberS{Value: holder},
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lease %q: %w", name, err)
	}
	return true, nil
}

// Renew implements lock.LeaseStore.
func (s *Store) Renew(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"lock_name": &types.AttributeValueMemberS{Value: name},
		},
		UpdateExpression:    aws.String("SET expires_at = :exp"),
		ConditionExpression: aws.String(holderCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":exp":    millis(s.now().Add(ttl)),
			":holder": &types.AttributeValueMemberS{Value: holder},
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("renew lease %q: %w", name, err)
	}
	return true, nil
}

// Release implements lock.LeaseStore.
func (s *Store) Release(ctx context.Context, name, holder string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"lock_name": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String(holderCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":holder": &types.AttributeValueMemberS{Value: holder},
		},
	})
	if isConditionFailed(err) {
		return nil // taken over after expiry
	}
	if err != nil {
		return fmt.Errorf("release lease %q: %w", name, err)
	}
	return nil
}

func millis(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}

func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}
