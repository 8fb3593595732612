package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// sessionItem is the DynamoDB row; the session itself is a JSON attribute.
type sessionItem struct {
	ChannelID string `dynamodbav:"channelId"`
	SessionID string `dynamodbav:"sessionId"`
	State     string `dynamodbav:"state"`
	Payload   string `dynamodbav:"payload"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty"`
}

// DynamoStore keeps sessions in a DynamoDB table keyed by channelId with a
// TTL attribute named expiresAt.
type DynamoStore struct {
	client dynamoAPI
	table  string
	ttl    time.Duration
	now    func() time.Time
}

func NewDynamoStore(client dynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	if client == nil {
		panic("intake: dynamodb client cannot be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		panic("intake: dynamodb table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &DynamoStore{client: client, table: tableName, ttl: ttl, now: time.Now}
}

func (s *DynamoStore) Get(ctx context.Context, channelID string) (*Session, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            channelKey(channelID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("intake: get session: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrSessionNotFound
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("intake: decode session item: %w", err)
	}
	if item.ExpiresAt > 0 && s.now().Unix() >= item.ExpiresAt {
		return nil, ErrSessionNotFound
	}

	var sess Session
	if err := json.Unmarshal([]byte(item.Payload), &sess); err != nil {
		return nil, fmt.Errorf("intake: decode session payload: %w", err)
	}
	return &sess, nil
}

func (s *DynamoStore) Set(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("intake: marshal session: %w", err)
	}
	now := s.now().UTC()
	item, err := attributevalue.MarshalMap(sessionItem{
		ChannelID: session.ChannelID,
		SessionID: session.ID,
		State:     string(session.State()),
		Payload:   string(payload),
		UpdatedAt: now.Format(time.RFC3339),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("intake: marshal session item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("intake: put session: %w", err)
	}
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, channelID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       channelKey(channelID),
	})
	if err != nil {
		return fmt.Errorf("intake: delete session: %w", err)
	}
	return nil
}

func channelKey(channelID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"channelId": &types.AttributeValueMemberS{Value: channelID},
	}
}
