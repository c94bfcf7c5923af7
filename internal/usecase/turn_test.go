package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"order-agent/internal/domain"
	"order-agent/internal/order"
	"order-agent/internal/repository"
	"order-agent/internal/tenant"
)

const (
	testTenant  = "t1"
	testChannel = "5511999990000"
)

type fakeSender struct {
	texts []string
	err   error
}

func (f *fakeSender) Send(_ context.Context, _, _, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSender) last() string {
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeOrderProvider struct {
	calls int
	fail  bool
}

func (f *fakeOrderProvider) CreateOrder(context.Context, order.Payload) (order.Result, error) {
	f.calls++
	if f.fail {
		return order.Result{}, errors.New("provider unavailable")
	}
	return order.Result{OK: true, OrderID: fmt.Sprintf("ord-%d", f.calls)}, nil
}

type fakeCatalog struct {
	entries []domain.CatalogEntry
	loads   int
}

func (f *fakeCatalog) LoadCatalog(context.Context) ([]domain.CatalogEntry, error) {
	f.loads++
	return f.entries, nil
}

type fixture struct {
	svc      *TurnService
	store    *repository.MemoryStore
	sender   *fakeSender
	provider *fakeOrderProvider
	catalog  *fakeCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	sender := &fakeSender{}
	provider := &fakeOrderProvider{}
	cat := &fakeCatalog{entries: []domain.CatalogEntry{
		{Code: "PZ-01", Name: "Pizza Calabresa", UnitPriceCents: 4500},
		{Code: "BD-02", Name: "Refrigerante", UnitPriceCents: 600},
	}}

	committer, err := order.NewCommitter(provider, nil, nil, slog.Default())
	require.NoError(t, err)

	tenants := map[string]*TenantRuntime{
		testTenant: {
			Config:    tenant.Tenant{ID: testTenant, Name: "Pizzaria Central", PixKey: "chave-pix"},
			Committer: committer,
			Catalog:   cat,
		},
	}

	svc, err := NewTurnService(store, sender, tenants, slog.Default())
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, sender: sender, provider: provider, catalog: cat}
}

// turn runs one inbound message and returns the persisted conversation.
func (f *fixture) turn(t *testing.T, text string) *domain.Conversation {
	t.Helper()
	require.NoError(t, f.svc.ProcessTurn(context.Background(), testTenant, testChannel, text))
	conv, err := f.store.LoadConversation(context.Background(), testTenant, testChannel)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}

func (f *fixture) profile(t *testing.T) *domain.CustomerProfile {
	t.Helper()
	p, err := f.store.LoadProfile(context.Background(), testTenant, testChannel)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestProcessTurn_GreetingOpensMenu(t *testing.T) {
	f := newFixture(t)

	conv := f.turn(t, "oi, boa noite")
	require.Equal(t, domain.StateMenu, conv.State)
	require.Contains(t, f.sender.last(), "Pizzaria Central")
}

func TestProcessTurn_TakeoutCashHappyPath(t *testing.T) {
	f := newFixture(t)

	conv := f.turn(t, "quero 1 pizza calabresa e 2 refrigerantes")
	require.Equal(t, domain.StateAddingItem, conv.State)
	require.Equal(t, []domain.Item{
		{Name: "Pizza Calabresa", Quantity: 1},
		{Name: "Refrigerante", Quantity: 2},
	}, conv.Transaction.Items)
	require.Contains(t, f.sender.last(), "bebida")

	conv = f.turn(t, "só isso")
	require.Equal(t, domain.StateConfirmingCart, conv.State)
	require.True(t, conv.ItemsPhaseComplete)
	require.Contains(t, f.sender.last(), "entrega ou retirada")

	conv = f.turn(t, "retirada")
	require.Equal(t, domain.StateCollectingPayment, conv.State)
	require.Equal(t, domain.ModeTakeout, conv.Transaction.Mode)

	conv = f.turn(t, "dinheiro")
	require.Equal(t, domain.StateFinalizing, conv.State)
	require.Contains(t, f.sender.last(), "Total: R$ 57,00")
	require.Contains(t, f.sender.last(), "Posso confirmar?")

	conv = f.turn(t, "sim")
	require.Equal(t, domain.StateConfirmed, conv.State)
	require.Equal(t, "ord-1", conv.Transaction.OrderID)
	require.Equal(t, 1, f.provider.calls)
	require.Contains(t, f.sender.last(), "ord-1")

	p := f.profile(t)
	require.Equal(t, 1, p.TotalOrders)
	require.NotNil(t, p.LastOrder)
	require.Equal(t, "ord-1", p.LastOrder.OrderID)
}

func TestProcessTurn_DeliveryPixFlow(t *testing.T) {
	f := newFixture(t)

	f.turn(t, "quero 2 pizza calabresa")
	conv := f.turn(t, "mais nada")
	require.Equal(t, domain.StateConfirmingCart, conv.State)

	// an address hint with no stated mode gets confirmed, never assumed
	conv = f.turn(t, "moro na rua das flores, 123")
	require.Equal(t, domain.FieldMode, conv.PendingConfirmation)
	require.Equal(t, domain.ModeDelivery, conv.Transaction.Mode)
	require.Contains(t, f.sender.last(), "entrega")

	conv = f.turn(t, "sim")
	require.Equal(t, domain.StateCollectingAddress, conv.State)
	require.Empty(t, conv.PendingConfirmation)
	require.Contains(t, f.sender.last(), "bairro")
	require.Contains(t, f.sender.last(), "cidade")

	conv = f.turn(t, "bairro centro, cidade de sao paulo")
	require.Equal(t, domain.StateCollectingPayment, conv.State)
	require.Equal(t, "centro", conv.Transaction.Address.Neighborhood)
	require.Equal(t, "sao paulo", conv.Transaction.Address.City)

	conv = f.turn(t, "pix")
	require.Equal(t, domain.StateFinalizing, conv.State)
	require.Contains(t, f.sender.last(), "Total: R$ 90,00")

	conv = f.turn(t, "sim")
	require.Equal(t, domain.StateWaitingPayment, conv.State)
	require.Equal(t, "ord-1", conv.Transaction.OrderID)
	require.Equal(t, 1, f.provider.calls)
	require.Contains(t, f.sender.last(), "chave-pix")

	conv = f.turn(t, "paguei, mandei o pix")
	require.Equal(t, domain.StateConfirmed, conv.State)
	require.Equal(t, 1, f.provider.calls)
	require.Contains(t, f.sender.last(), "ord-1")
}

func TestProcessTurn_RedeliveredGroupIsSilent(t *testing.T) {
	f := newFixture(t)

	conv := f.turn(t, "quero 1 pizza calabresa")
	sent := len(f.sender.texts)
	items := conv.Transaction.Items

	conv = f.turn(t, "quero 1 pizza calabresa")
	require.Len(t, f.sender.texts, sent)
	require.Equal(t, items, conv.Transaction.Items)
}

func TestProcessTurn_CancelResetsFlow(t *testing.T) {
	f := newFixture(t)

	f.turn(t, "quero 1 pizza calabresa")
	conv := f.turn(t, "cancela tudo")
	require.Equal(t, domain.StateInit, conv.State)
	require.Empty(t, conv.Transaction.Items)
	require.Contains(t, f.sender.last(), "cancelado")
}

func TestProcessTurn_HandoffSilencesEngine(t *testing.T) {
	f := newFixture(t)

	conv := f.turn(t, "quero falar com atendente")
	require.Equal(t, domain.StateHumanHandoff, conv.State)
	require.Contains(t, f.sender.last(), "atendente")

	sent := len(f.sender.texts)
	conv = f.turn(t, "tem alguem ai pra me ajudar")
	require.Equal(t, domain.StateHumanHandoff, conv.State)
	require.Len(t, f.sender.texts, sent)
}

func TestProcessTurn_EscalatesAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)

	conv := f.turn(t, "xyzzy plugh")
	require.Equal(t, 1, conv.ConsecutiveFailures)
	conv = f.turn(t, "fnord gleep")
	require.Equal(t, 2, conv.ConsecutiveFailures)
	conv = f.turn(t, "wibble wobble")
	require.Equal(t, 3, conv.ConsecutiveFailures)

	conv = f.turn(t, "brzzt klonk")
	require.Equal(t, domain.StateHumanHandoff, conv.State)
	require.Contains(t, f.sender.last(), "atendente")
}

func TestProcessTurn_UnknownItemReported(t *testing.T) {
	f := newFixture(t)

	conv := f.turn(t, "quero 1 hamburguer")
	require.Equal(t, domain.StateAddingItem, conv.State)
	require.Empty(t, conv.Transaction.Items)

	require.GreaterOrEqual(t, len(f.sender.texts), 2)
	require.Contains(t, f.sender.texts[len(f.sender.texts)-2], "hamburguer")
	require.Contains(t, f.sender.last(), "pedir")
}

func TestProcessTurn_ProviderOutageHoldsReview(t *testing.T) {
	f := newFixture(t)
	f.provider.fail = true

	f.turn(t, "quero 1 pizza calabresa")
	f.turn(t, "so isso")
	f.turn(t, "retirada")
	f.turn(t, "dinheiro")

	conv := f.turn(t, "sim")
	require.Equal(t, domain.StateFinalizing, conv.State)
	require.Empty(t, conv.Transaction.OrderID)
	require.Equal(t, 1, f.provider.calls)
	require.Contains(t, f.sender.last(), "problema")

	// retry with a fresh confirmation once the provider recovers
	f.provider.fail = false
	conv = f.turn(t, "ok")
	require.Equal(t, domain.StateConfirmed, conv.State)
	require.Equal(t, "ord-2", conv.Transaction.OrderID)
	require.Equal(t, 2, f.provider.calls)
}

func TestProcessTurn_RepeatOrderOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveProfile(ctx, &domain.CustomerProfile{
		TenantID: testTenant,
		Phone:    testChannel,
		LastOrder: &domain.Transaction{
			OrderID: "ord-9",
			Items:   []domain.Item{{Name: "Pizza Calabresa", Quantity: 1, CatalogCode: "PZ-01", UnitPriceCents: 4500}},
		},
	}))

	conv := f.turn(t, "oi")
	require.Equal(t, domain.StateMenu, conv.State)
	require.True(t, conv.AwaitingRepeatChoice)
	require.Contains(t, f.sender.last(), "1x Pizza Calabresa")

	conv = f.turn(t, "sim")
	require.Equal(t, domain.StateConfirmingCart, conv.State)
	require.False(t, conv.AwaitingRepeatChoice)
	require.Len(t, conv.Transaction.Items, 1)
	require.Equal(t, "Pizza Calabresa", conv.Transaction.Items[0].Name)
	require.Contains(t, f.sender.last(), "entrega ou retirada")
}

func TestProcessTurn_CancelWhileAwaitingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv := domain.NewConversation(testTenant, testChannel, time.Now())
	conv.State = domain.StateWaitingPayment
	conv.Transaction = domain.Transaction{
		Items:   []domain.Item{{Name: "Pizza Calabresa", Quantity: 1, UnitPriceCents: 4500}},
		Mode:    domain.ModeTakeout,
		Payment: domain.PaymentPix,
		OrderID: "ord-7",
	}
	conv.ItemsPhaseComplete = true
	require.NoError(t, f.store.SaveConversation(ctx, conv))

	// the submitted order stands; the cart reopens for the customer
	got := f.turn(t, "quero cancelar")
	require.Equal(t, domain.StateAddingItem, got.State)
	require.Equal(t, "ord-7", got.Transaction.OrderID)
	require.NotEmpty(t, got.Transaction.Items)
}

func TestProcessTurn_RotatesStaleMidFlow(t *testing.T) {
	f := newFixture(t)

	conv := f.turn(t, "quero 1 pizza calabresa")
	require.Equal(t, domain.StateAddingItem, conv.State)

	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	conv = f.turn(t, "oi")
	require.Equal(t, domain.StateMenu, conv.State)
	require.Empty(t, conv.Transaction.Items)

	// rotation drops the cached catalog; the next item turn fetches fresh
	// prices
	f.turn(t, "quero 1 refrigerante")
	require.Equal(t, 2, f.catalog.loads)
}

func TestProcessTurn_InputErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var uerr *Error
	err := f.svc.ProcessTurn(ctx, testTenant, testChannel, "   ")
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, ErrorInvalidInput, uerr.Code)

	err = f.svc.ProcessTurn(ctx, "ghost", testChannel, "oi")
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, ErrorUnknownTenant, uerr.Code)
}

func TestFollowUpNudgesOnlyOpenCarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.turn(t, "quero 1 pizza calabresa")
	sent := len(f.sender.texts)

	f.svc.FollowUp(ctx, testTenant, testChannel)
	require.Len(t, f.sender.texts, sent+1)
	require.Contains(t, f.sender.last(), "ainda está aí")

	// confirmed orders are left alone
	f.turn(t, "so isso")
	f.turn(t, "retirada")
	f.turn(t, "dinheiro")
	f.turn(t, "sim")
	sent = len(f.sender.texts)
	f.svc.FollowUp(ctx, testTenant, testChannel)
	require.Len(t, f.sender.texts, sent)
}

func TestAutoCancelAbandonedCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.turn(t, "quero 1 pizza calabresa")
	f.svc.AutoCancel(ctx, testTenant, testChannel)

	conv, err := f.store.LoadConversation(ctx, testTenant, testChannel)
	require.NoError(t, err)
	require.Equal(t, domain.StateInit, conv.State)
	require.Empty(t, conv.Transaction.Items)
	require.Contains(t, f.sender.last(), "cancelei")
}

type fakeExtractor struct {
	upd   domain.PartialUpdate
	err   error
	calls int
}

func (f *fakeExtractor) ExtractUpdate(context.Context, string, string) (domain.PartialUpdate, error) {
	f.calls++
	return f.upd, f.err
}

func TestProcessTurn_ExtractionFallsBackToModel(t *testing.T) {
	f := newFixture(t)
	f.svc.tenants[testTenant].Config.Model = "gpt-mock"
	ex := &fakeExtractor{upd: domain.PartialUpdate{
		Items: []domain.ItemUpdate{{Name: "pizza calabresa", Quantity: 1}},
	}}
	f.svc.extractor = ex

	conv := f.turn(t, "xyzzy plugh")
	require.Equal(t, 1, ex.calls)
	require.Equal(t, []domain.Item{{Name: "Pizza Calabresa", Quantity: 1}}, conv.Transaction.Items)
	require.Equal(t, domain.StateAddingItem, conv.State)
	require.Zero(t, conv.ConsecutiveFailures)
}

func TestProcessTurn_ExtractorErrorKeepsDeterministicResult(t *testing.T) {
	f := newFixture(t)
	f.svc.tenants[testTenant].Config.Model = "gpt-mock"
	ex := &fakeExtractor{err: errors.New("model unavailable")}
	f.svc.extractor = ex

	conv := f.turn(t, "xyzzy plugh")
	require.Equal(t, 1, ex.calls)
	require.Empty(t, conv.Transaction.Items)
	require.Equal(t, 1, conv.ConsecutiveFailures)
}

func TestProcessTurn_ExtractorSkippedWhenRulesSucceed(t *testing.T) {
	f := newFixture(t)
	f.svc.tenants[testTenant].Config.Model = "gpt-mock"
	ex := &fakeExtractor{}
	f.svc.extractor = ex

	f.turn(t, "quero 1 pizza calabresa")
	require.Zero(t, ex.calls)
}

func TestProcessTurn_CommitFailureCountsTowardEscalation(t *testing.T) {
	f := newFixture(t)
	f.provider.fail = true

	f.turn(t, "quero 1 pizza calabresa")
	f.turn(t, "so isso")
	f.turn(t, "retirada")
	f.turn(t, "dinheiro")
	conv := f.turn(t, "sim")
	require.Equal(t, domain.StateFinalizing, conv.State)
	require.Equal(t, 1, conv.ConsecutiveFailures)

	f.provider.fail = false
	conv = f.turn(t, "ok")
	require.Equal(t, domain.StateConfirmed, conv.State)
	require.Zero(t, conv.ConsecutiveFailures)
}

func TestProcessTurn_CorrectionAtReviewAdjustsQuantity(t *testing.T) {
	f := newFixture(t)

	f.turn(t, "quero 2 pizza calabresa")
	f.turn(t, "mais nada")
	f.turn(t, "retirada")
	conv := f.turn(t, "dinheiro")
	require.Equal(t, domain.StateFinalizing, conv.State)
	require.Contains(t, f.sender.last(), "Total: R$ 90,00")

	conv = f.turn(t, "na verdade e so 1")
	require.Equal(t, domain.StateFinalizing, conv.State)
	require.Len(t, conv.Transaction.Items, 1)
	require.Equal(t, 1, conv.Transaction.Items[0].Quantity)
	require.Contains(t, f.sender.last(), "Total: R$ 45,00")
	for _, text := range f.sender.texts {
		require.NotContains(t, text, "Não encontrei")
	}
}

func TestProcessTurn_RestrictiveQuantifierReadsAsOrder(t *testing.T) {
	f := newFixture(t)

	conv := f.turn(t, "quero so 1 pizza calabresa")
	require.Equal(t, []domain.Item{{Name: "Pizza Calabresa", Quantity: 1}}, conv.Transaction.Items)
	for _, text := range f.sender.texts {
		require.NotContains(t, text, "Não encontrei")
	}
}
