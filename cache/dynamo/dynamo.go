// Package dynamo provides a cache.Store backed by DynamoDB. Expiry uses
// DynamoDB native TTL on the expires_at attribute.
//
// Table schema:
//   - Partition key: cache_key (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name fusego-embeddings \
//	  --attribute-definitions AttributeName=cache_key,AttributeType=S \
//	  --key-schema AttributeName=cache_key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
//	aws dynamodb update-time-to-live \
//	  --table-name fusego-embeddings \
//	  --time-to-live-specification Enabled=true,AttributeName=expires_at
package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/fusego/fusego/cache"
)

// Compile time check to ensure Store satisfies the cache.Store interface.
var _ cache.Store = (*Store)(nil)

// Client is the interface for DynamoDB operations.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store is a DynamoDB-backed cache.Store. DynamoDB TTL deletion lags the
// expiry time, so Get also checks expires_at and treats stale items as
// misses. Transient failures on Get degrade to a miss.
type Store struct {
	client    Client
	tableName string
	now       func() time.Time
}

// New creates a new DynamoDB store.
func New(client Client, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

// Get implements the cache.Store interface.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"cache_key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil || resp.Item == nil {
		return nil, false
	}

	if expAttr, ok := resp.Item["expires_at"].(*types.AttributeValueMemberN); ok {
		exp, err := strconv.ParseInt(expAttr.Value, 10, 64)
		if err != nil || s.now().Unix() >= exp {
			return nil, false
		}
	}

	valueAttr, ok := resp.Item["value"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, false
	}

	return valueAttr.Value, true
}

// Set implements the cache.Store interface.
func (s *Store) Set(ctx context.Context, key string, b []byte, ttl time.Duration) error {
	item := map[string]types.AttributeValue{
		"cache_key": &types.AttributeValueMemberS{Value: key},
		"value":     &types.AttributeValueMemberB{Value: b},
	}
	if ttl > 0 {
		exp := s.now().Add(ttl).Unix()
		item["expires_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(exp, 10)}
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamodb put item: %w", err)
	}

	return nil
}
