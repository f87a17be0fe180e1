package dynamodb

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/blobdir/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB mock that evaluates the lease
// conditions used by Store.
type mockDDBClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	return av.(*types.AttributeValueMemberS).Value
}

func num(av types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(av.(*types.AttributeValueMemberN).Value, 10, 64)
	return n
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := str(params.Item["lock_name"])
	if cur, ok := m.items[key]; ok && aws.ToString(params.ConditionExpression) == acquireCondition {
		vals := params.ExpressionAttributeValues
		expired := num(cur["expires_at"]) < num(vals[":now"])
		same := str(cur["holder"]) == str(vals[":holder"])
		if !expired && !same {
			return nil, conditionFailed()
		}
	}
	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := str(params.Key["lock_name"])
	cur, ok := m.items[key]
	if !ok || str(cur["holder"]) != str(params.ExpressionAttributeValues[":holder"]) {
		return nil, conditionFailed()
	}
	cur["expires_at"] = params.ExpressionAttributeValues[":exp"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDDBClient) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := str(params.Key["lock_name"])
	cur, ok := m.items[key]
	if !ok || str(cur["holder"]) != str(params.ExpressionAttributeValues[":holder"]) {
		return nil, conditionFailed()
	}
	delete(m.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestStore_Lease(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewStore(newMockDDBClient(), "locks")
	s.now = func() time.Time { return now }

	ok, err := s.TryAcquire(ctx, "write", "a", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryAcquire(ctx, "write", "b", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Renew(ctx, "write", "a", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Renew(ctx, "write", "b", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// Releasing a lease held by someone else is a no-op.
	require.NoError(t, s.Release(ctx, "write", "b"))
	ok, err = s.TryAcquire(ctx, "write", "b", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "write", "a"))
	ok, err = s.TryAcquire(ctx, "write", "b", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ExpiredTakeover(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewStore(newMockDDBClient(), "locks")
	s.now = func() time.Time { return now }

	ok, err := s.TryAcquire(ctx, "write", "a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, err = s.TryAcquire(ctx, "write", "b", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Renew(ctx, "write", "a", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_WithLeaseLocker(t *testing.T) {
	ctx := context.Background()
	client := newMockDDBClient()
	a := lock.NewLeaseLocker(NewStore(client, "locks"))
	b := lock.NewLeaseLocker(NewStore(client, "locks"))
	defer func() { _ = a.Close(); _ = b.Close() }()

	h, err := a.Acquire(ctx, "write", false)
	require.NoError(t, err)

	_, err = b.Acquire(ctx, "write", false)
	assert.ErrorIs(t, err, lock.ErrWouldBlock)

	require.NoError(t, a.Release(ctx, h))
	h, err = b.Acquire(ctx, "write", false)
	require.NoError(t, err)
	require.NoError(t, b.Release(ctx, h))
}
