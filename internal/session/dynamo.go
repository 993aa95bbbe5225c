package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slackbridge/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the session table. The table's TTL feature must be
// configured on attrTTL (epoch seconds).
const (
	attrThreadID  = "slack_thread_id" // partition key
	attrChannelID = "channel_id"      // sort key
	attrTTL       = "ttl"
	attrActivity  = "last_activity"
)

type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements domain.SessionStore on a DynamoDB table keyed by
// (slack_thread_id, channel_id).
type DynamoStore struct {
	client dynamoAPI
	table  string
	logger *slog.Logger
}

type dynamoItem struct {
	ThreadID       string `dynamodbav:"slack_thread_id"`
	ChannelID      string `dynamodbav:"channel_id"`
	AgentSessionID string `dynamodbav:"bedrock_session_id"`
	UserID         string `dynamodbav:"user_id,omitempty"`
	CreatedAt      string `dynamodbav:"created_at"`
	LastActivity   string `dynamodbav:"last_activity"`
	TTL            int64  `dynamodbav:"ttl"`
}

// NewDynamoStore wraps a DynamoDB client. Use dynamodb.NewFromConfig for client.
func NewDynamoStore(client *dynamodb.Client, table string, logger *slog.Logger) (*DynamoStore, error) {
	return newDynamoStore(client, table, logger)
}

func newDynamoStore(client dynamoAPI, table string, logger *slog.Logger) (*DynamoStore, error) {
	if table == "" {
		return nil, fmt.Errorf("missing session table name")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoStore{client: client, table: table, logger: logger}, nil
}

func dynamoKey(key domain.SessionKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrThreadID:  &types.AttributeValueMemberS{Value: key.ThreadID},
		attrChannelID: &types.AttributeValueMemberS{Value: key.ChannelID},
	}
}

func (s *DynamoStore) GetSession(ctx context.Context, key domain.SessionKey) (*domain.SessionRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            dynamoKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get %s: %w", s.table, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode session item: %w", err)
	}
	if item.AgentSessionID == "" {
		return nil, fmt.Errorf("session item for thread %s has no agent session id", key.ThreadID)
	}
	return item.record(), nil
}

func (s *DynamoStore) PutSession(ctx context.Context, rec domain.SessionRecord) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		ThreadID:       rec.Key.ThreadID,
		ChannelID:      rec.Key.ChannelID,
		AgentSessionID: rec.AgentSessionID,
		UserID:         rec.UserID,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
		LastActivity:   rec.LastActivity.UTC().Format(time.RFC3339),
		TTL:            rec.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode session item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put %s: %w", s.table, err)
	}
	return nil
}

// TouchSession refreshes expiry and last activity. The update is
// conditional on the item existing so a concurrently expired record is not
// resurrected without its session id.
func (s *DynamoStore) TouchSession(ctx context.Context, key domain.SessionKey, lastActivity, expiresAt time.Time) error {
	update := expression.
		Set(expression.Name(attrTTL), expression.Value(expiresAt.Unix())).
		Set(expression.Name(attrActivity), expression.Value(lastActivity.UTC().Format(time.RFC3339)))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(attrThreadID))).
		Build()
	if err != nil {
		return fmt.Errorf("build update expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       dynamoKey(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("dynamodb update %s: %w", s.table, err)
	}
	return nil
}

func (it dynamoItem) record() *domain.SessionRecord {
	rec := &domain.SessionRecord{
		Key:            domain.SessionKey{ThreadID: it.ThreadID, ChannelID: it.ChannelID},
		AgentSessionID: it.AgentSessionID,
		UserID:         it.UserID,
		ExpiresAt:      time.Unix(it.TTL, 0),
	}
	// Timestamps are informational; a malformed one leaves the zero time.
	rec.CreatedAt, _ = time.Parse(time.RFC3339, it.CreatedAt)
	rec.LastActivity, _ = time.Parse(time.RFC3339, it.LastActivity)
	return rec
}
