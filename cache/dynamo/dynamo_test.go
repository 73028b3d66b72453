package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}

	key := params.Key["cache_key"].(*types.AttributeValueMemberS).Value

	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}

	key := params.Item["cache_key"].(*types.AttributeValueMemberS).Value
	f.items[key] = params.Item

	return &dynamodb.PutItemOutput{}, nil
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeClient(), "embeddings")

	_, ok := s.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestExpiredItemIsMiss(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeClient(), "embeddings")

	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	_, ok := s.Get(ctx, "k")
	assert.True(t, ok)

	// DynamoDB TTL deletion lags, the item is still in the table.
	now = now.Add(2 * time.Minute)
	_, ok = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestUnavailableDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.err = errors.New("throttled")
	s := New(client, "embeddings")

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)

	assert.Error(t, s.Set(ctx, "k", []byte("v"), 0))
}
