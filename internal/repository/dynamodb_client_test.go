package repository

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"order-agent/internal/domain"
)

// fakeDynamo keeps items in memory keyed by PK|SK, mirroring a single table.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.items[itemKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "orders")
	require.Error(t, err)

	_, err = New(newFakeDynamo(), "  ")
	require.Error(t, err)
}

func TestConversationRoundTrip(t *testing.T) {
	api := newFakeDynamo()
	c, err := New(api, "orders")
	require.NoError(t, err)
	ctx := context.Background()

	conv := domain.NewConversation("t1", "5511999990000", time.Now().UTC())
	conv.State = domain.StateCollectingAddress
	conv.Transaction.Items = []domain.Item{{Name: "pizza calabresa", Quantity: 2}}
	conv.Transaction.Mode = domain.ModeDelivery
	conv.ItemsPhaseComplete = true
	require.NoError(t, c.SaveConversation(ctx, conv))

	got, err := c.LoadConversation(ctx, "t1", "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, domain.StateCollectingAddress, got.State)
	require.Equal(t, conv.Transaction.Items, got.Transaction.Items)
	require.True(t, got.ItemsPhaseComplete)

	// snapshots rotate out; the stored item must carry a TTL
	item := api.items["TENANT#t1|CONV#5511999990000"]
	require.Contains(t, item, "ttl")
}

func TestLoadConversation_AbsentIsNil(t *testing.T) {
	c, err := New(newFakeDynamo(), "orders")
	require.NoError(t, err)

	got, err := c.LoadConversation(context.Background(), "t1", "unknown")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestProfileRoundTrip(t *testing.T) {
	api := newFakeDynamo()
	c, err := New(api, "orders")
	require.NoError(t, err)
	ctx := context.Background()

	profile := &domain.CustomerProfile{
		TenantID:    "t1",
		Phone:       "5511999990000",
		Name:        "Maria",
		TotalOrders: 3,
		LastOrder:   &domain.Transaction{OrderID: "ord-9"},
	}
	require.NoError(t, c.SaveProfile(ctx, profile))

	got, err := c.LoadProfile(ctx, "t1", "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Maria", got.Name)
	require.Equal(t, 3, got.TotalOrders)
	require.Equal(t, "ord-9", got.LastOrder.OrderID)

	// profiles persist indefinitely
	item := api.items["TENANT#t1|CUST#5511999990000"]
	require.NotContains(t, item, "ttl")
}

func TestSave_NilInputs(t *testing.T) {
	c, err := New(newFakeDynamo(), "orders")
	require.NoError(t, err)

	require.Error(t, c.SaveConversation(context.Background(), nil))
	require.Error(t, c.SaveProfile(context.Background(), nil))
}

func TestLoad_CorruptSnapshot(t *testing.T) {
	api := newFakeDynamo()
	api.items["TENANT#t1|CONV#x"] = map[string]types.AttributeValue{
		"PK":       &types.AttributeValueMemberS{Value: "TENANT#t1"},
		"SK":       &types.AttributeValueMemberS{Value: "CONV#x"},
		"snapshot": &types.AttributeValueMemberS{Value: "{broken"},
	}
	c, err := New(api, "orders")
	require.NoError(t, err)

	_, err = c.LoadConversation(context.Background(), "t1", "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv := domain.NewConversation("t1", "c1", time.Now())
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}
	require.NoError(t, s.SaveConversation(ctx, conv))

	// later mutations must not leak into the stored snapshot
	conv.Transaction.Items[0].Quantity = 99

	got, err := s.LoadConversation(ctx, "t1", "c1")
	require.NoError(t, err)
	require.Equal(t, 1, got.Transaction.Items[0].Quantity)

	absent, err := s.LoadProfile(ctx, "t1", "nope")
	require.NoError(t, err)
	require.Nil(t, absent)
}
