package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"order-agent/internal/domain"
)

const (
	skPrefixConv = "CONV#"
	skPrefixCust = "CUST#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store defines the persistence operations consumed by the turn service.
// Absent records load as (nil, nil).
type Store interface {
	LoadConversation(ctx context.Context, tenantID, channel string) (*domain.Conversation, error)
	SaveConversation(ctx context.Context, conv *domain.Conversation) error
	LoadProfile(ctx context.Context, tenantID, phone string) (*domain.CustomerProfile, error)
	SaveProfile(ctx context.Context, profile *domain.CustomerProfile) error
}

// Client wraps a single DynamoDB table holding conversation snapshots and
// customer profiles, partitioned by tenant.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

func tenantPK(tenantID string) string {
	return "TENANT#" + tenantID
}

func convSK(channel string) string {
	return skPrefixConv + channel
}

func custSK(phone string) string {
	return skPrefixCust + phone
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// LoadConversation reads the conversation snapshot, or (nil, nil) when the
// customer has never talked to this tenant.
func (c *Client) LoadConversation(ctx context.Context, tenantID, channel string) (*domain.Conversation, error) {
	item, err := c.getItem(ctx, tenantPK(tenantID), convSK(channel))
	if err != nil {
		return nil, fmt.Errorf("repository: LoadConversation: %w", err)
	}
	if item == nil {
		return nil, nil
	}

	var conv domain.Conversation
	if err := unmarshalSnapshot(item, &conv); err != nil {
		return nil, fmt.Errorf("repository: LoadConversation: %w", err)
	}
	return &conv, nil
}

// SaveConversation replaces the conversation snapshot.
func (c *Client) SaveConversation(ctx context.Context, conv *domain.Conversation) error {
	if conv == nil {
		return errors.New("repository: SaveConversation: conversation must not be nil")
	}
	item, err := snapshotItem(tenantPK(conv.TenantID), convSK(conv.Channel), conv, true)
	if err != nil {
		return fmt.Errorf("repository: SaveConversation: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: SaveConversation: %w", err)
	}
	return nil
}

// LoadProfile reads the customer profile, or (nil, nil) when absent.
func (c *Client) LoadProfile(ctx context.Context, tenantID, phone string) (*domain.CustomerProfile, error) {
	item, err := c.getItem(ctx, tenantPK(tenantID), custSK(phone))
	if err != nil {
		return nil, fmt.Errorf("repository: LoadProfile: %w", err)
	}
	if item == nil {
		return nil, nil
	}

	var profile domain.CustomerProfile
	if err := unmarshalSnapshot(item, &profile); err != nil {
		return nil, fmt.Errorf("repository: LoadProfile: %w", err)
	}
	return &profile, nil
}

// SaveProfile replaces the customer profile. Profiles carry no TTL; returning
// customers are the point of keeping them.
func (c *Client) SaveProfile(ctx context.Context, profile *domain.CustomerProfile) error {
	if profile == nil {
		return errors.New("repository: SaveProfile: profile must not be nil")
	}
	item, err := snapshotItem(tenantPK(profile.TenantID), custSK(profile.Phone), profile, false)
	if err != nil {
		return fmt.Errorf("repository: SaveProfile: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: SaveProfile: %w", err)
	}
	return nil
}

func (c *Client) getItem(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

// snapshotItem stores the record as one JSON document attribute. The engine
// always reads and writes whole snapshots, so per-attribute mapping would buy
// nothing.
func snapshotItem(pk, sk string, v any, withTTL bool) (map[string]types.AttributeValue, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: pk},
		"SK":        &types.AttributeValueMemberS{Value: sk},
		"snapshot":  &types.AttributeValueMemberS{Value: string(raw)},
		"updatedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}
	if withTTL {
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue())}
	}
	return item, nil
}

func unmarshalSnapshot(item map[string]types.AttributeValue, v any) error {
	attr, ok := item["snapshot"]
	if !ok {
		return errors.New("missing attribute \"snapshot\"")
	}
	s, ok := attr.(*types.AttributeValueMemberS)
	if !ok {
		return errors.New("attribute \"snapshot\" is not a string")
	}
	if err := json.Unmarshal([]byte(s.Value), v); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return nil
}
