package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"order-agent/internal/domain"
)

func newConv(state domain.State) *domain.Conversation {
	conv := domain.NewConversation("t1", "5511999990000", time.Now())
	conv.State = state
	return conv
}

func classified(intent domain.Intent) domain.Classification {
	return domain.Classification{Intent: intent, Confidence: 1}
}

func TestTransitionTableIsClosed(t *testing.T) {
	for from, targets := range validTransitions {
		require.True(t, from.Known(), "source %q not in the state enum", from)
		for _, to := range targets {
			require.True(t, to.Known(), "target %q not in the state enum", to)
			require.True(t, ValidTransition(from, to))
		}
	}
}

func TestSelfTransitionAlwaysValid(t *testing.T) {
	require.True(t, ValidTransition(domain.StateFinalizing, domain.StateFinalizing))
	require.False(t, ValidTransition(domain.StateInit, domain.StateFinalizing))
}

func TestUnknownStateIsPermissive(t *testing.T) {
	require.True(t, ValidTransition(domain.State("LEGACY_STATE"), domain.StateAddingItem))
}

func TestHandoffOverridesEverything(t *testing.T) {
	cases := map[string]Input{
		"explicit request": {Conv: newConv(domain.StateAddingItem), Class: classified(domain.IntentHuman)},
		"low confidence": {
			Conv:  newConv(domain.StateAddingItem),
			Class: domain.Classification{Intent: domain.IntentOrder, Confidence: 0.2},
		},
		"frustration": {Conv: newConv(domain.StateFinalizing), Class: classified(domain.IntentOrder), Frustrated: true},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			d := Decide(in)
			require.Equal(t, domain.StateHumanHandoff, d.Next)
			require.Equal(t, domain.ActionHandoff, d.Action.Kind)
		})
	}

	conv := newConv(domain.StateCollectingPayment)
	conv.ConsecutiveFailures = 3
	d := Decide(Input{Conv: conv, Class: classified(domain.IntentOrder)})
	require.Equal(t, domain.StateHumanHandoff, d.Next)
}

func TestHandedOffConversationStaysSilent(t *testing.T) {
	d := Decide(Input{Conv: newConv(domain.StateHumanHandoff), Class: classified(domain.IntentOrder)})
	require.Equal(t, domain.StateHumanHandoff, d.Next)
	require.Empty(t, d.Action.Kind)
}

func TestCancelMidFlowResets(t *testing.T) {
	conv := newConv(domain.StateCollectingAddress)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}

	d := Decide(Input{Conv: conv, Class: classified(domain.IntentCancel)})
	require.Equal(t, domain.StateInit, d.Next)
	require.Equal(t, domain.ActionFlowCancelled, d.Action.Kind)
	require.True(t, d.ResetFlow)
}

func TestCancelWhileWaitingPaymentReopensCart(t *testing.T) {
	d := Decide(Input{Conv: newConv(domain.StateWaitingPayment), Class: classified(domain.IntentCancel)})
	require.Equal(t, domain.StateAddingItem, d.Next)
	require.False(t, d.ResetFlow)
}

func TestGreetingMovesToMenu(t *testing.T) {
	d := Decide(Input{Conv: newConv(domain.StateInit), Class: classified(domain.IntentGreeting)})
	require.Equal(t, domain.StateMenu, d.Next)
	require.Equal(t, domain.ActionGreet, d.Action.Kind)
}

func TestGreetingWithLastOrderOffersRepeat(t *testing.T) {
	d := Decide(Input{
		Conv:             newConv(domain.StateInit),
		Class:            classified(domain.IntentGreeting),
		LastOrderPreview: "1x Pizza Calabresa",
	})
	require.Equal(t, domain.ActionOfferRepeat, d.Action.Kind)
	require.Equal(t, "1x Pizza Calabresa", d.Action.Preview)
	require.True(t, d.OfferRepeat)
}

func TestRepeatChoice(t *testing.T) {
	conv := newConv(domain.StateMenu)
	conv.AwaitingRepeatChoice = true

	d := Decide(Input{Conv: conv, Class: classified(domain.IntentConfirm)})
	require.True(t, d.AcceptRepeat)
	require.True(t, d.CompleteItems)
	require.Equal(t, domain.StateConfirmingCart, d.Next)
	require.Equal(t, domain.ActionAskMode, d.Action.Kind)

	d = Decide(Input{Conv: conv, Class: classified(domain.IntentDeny)})
	require.True(t, d.DeclineRepeat)
	require.Equal(t, domain.StateAddingItem, d.Next)
	require.Equal(t, domain.ActionAskItems, d.Action.Kind)
}

func TestFirstItemsTriggerOneUpsell(t *testing.T) {
	conv := newConv(domain.StateInit)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}

	in := Input{
		Conv:   conv,
		Class:  domain.Classification{Intent: domain.IntentOrder, RequiresExtraction: true, Confidence: 0.9},
		Update: domain.PartialUpdate{Items: []domain.ItemUpdate{{Name: "pizza", Quantity: 1}}},
	}
	d := Decide(in)
	require.Equal(t, domain.ActionUpsellSuggest, d.Action.Kind)
	require.Equal(t, domain.StateAddingItem, d.Next)
	require.True(t, d.MarkUpsell)

	// once marked, the same turn shape routes normally
	conv.UpsellDone = true
	d = Decide(in)
	require.Equal(t, domain.ActionAskItems, d.Action.Kind)
}

func TestFinishClosesItemsAndAsksMode(t *testing.T) {
	conv := newConv(domain.StateAddingItem)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}
	conv.UpsellDone = true

	d := Decide(Input{Conv: conv, Class: classified(domain.IntentFinish)})
	require.True(t, d.CompleteItems)
	require.Equal(t, domain.StateConfirmingCart, d.Next)
	require.Equal(t, domain.ActionAskMode, d.Action.Kind)
	require.Equal(t, domain.FieldMode, d.Missing[0])
}

func TestMissingAddressSubfieldsAreTargeted(t *testing.T) {
	conv := newConv(domain.StateCollectingAddress)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}
	conv.ItemsPhaseComplete = true
	conv.UpsellDone = true
	conv.Transaction.Mode = domain.ModeDelivery
	conv.Transaction.Address = domain.Address{Street: "Rua A", Number: "10"}

	d := Decide(Input{
		Conv:   conv,
		Class:  domain.Classification{Intent: domain.IntentOrder, Confidence: 0.9},
		Update: domain.PartialUpdate{Address: domain.AddressUpdate{Number: "10"}},
	})
	require.Equal(t, domain.StateCollectingAddress, d.Next)
	require.Equal(t, domain.ActionAskAddress, d.Action.Kind)
	require.Equal(t, []domain.Field{domain.FieldNeighborhood, domain.FieldCity}, d.Action.Missing)
}

func TestInferredModeArmsConfirmation(t *testing.T) {
	conv := newConv(domain.StateAddingItem)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}
	conv.Transaction.Mode = domain.ModeDelivery

	d := Decide(Input{
		Conv:         conv,
		Class:        domain.Classification{Intent: domain.IntentOrder, Confidence: 0.9},
		Update:       domain.PartialUpdate{Address: domain.AddressUpdate{Street: "Rua A"}},
		ModeInferred: true,
	})
	require.Equal(t, domain.ActionConfirmField, d.Action.Kind)
	require.Equal(t, domain.FieldMode, d.Action.Field)
	require.Equal(t, domain.FieldMode, d.SetPending)
	require.Equal(t, domain.StateConfirmingCart, d.Next)
}

func TestPendingConfirmationAnswers(t *testing.T) {
	conv := newConv(domain.StateConfirmingCart)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}
	conv.ItemsPhaseComplete = true
	conv.UpsellDone = true
	conv.Transaction.Mode = domain.ModeTakeout
	conv.PendingConfirmation = domain.FieldMode

	d := Decide(Input{Conv: conv, Class: classified(domain.IntentConfirm)})
	require.True(t, d.ConfirmPending)
	require.Equal(t, domain.StateCollectingPayment, d.Next)
	require.Equal(t, domain.ActionAskPayment, d.Action.Kind)

	d = Decide(Input{Conv: conv, Class: classified(domain.IntentDeny)})
	require.True(t, d.ClearPendingField)
	require.Equal(t, domain.ActionAskMode, d.Action.Kind)
	require.Equal(t, domain.StateConfirmingCart, d.Next)

	d = Decide(Input{Conv: conv, Class: classified(domain.IntentUnknown), Question: true})
	require.Equal(t, domain.ActionReaskConfirmation, d.Action.Kind)
	require.True(t, d.Action.AnswerQuestion)
	require.Equal(t, domain.StateConfirmingCart, d.Next)
}

func TestPendingConfirmationRestatedValueCounts(t *testing.T) {
	conv := newConv(domain.StateConfirmingCart)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}
	conv.ItemsPhaseComplete = true
	conv.UpsellDone = true
	conv.Transaction.Mode = domain.ModeTakeout
	conv.PendingConfirmation = domain.FieldMode

	d := Decide(Input{
		Conv:   conv,
		Class:  classified(domain.IntentUnknown),
		Update: domain.PartialUpdate{Mode: domain.ModeTakeout},
	})
	require.True(t, d.ConfirmPending)
	require.Equal(t, domain.StateCollectingPayment, d.Next)
}

func TestCompleteCartReachesReview(t *testing.T) {
	conv := newConv(domain.StateCollectingPayment)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}
	conv.ItemsPhaseComplete = true
	conv.UpsellDone = true
	conv.Transaction.Mode = domain.ModeTakeout
	conv.Transaction.Payment = domain.PaymentCash

	d := Decide(Input{
		Conv:   conv,
		Class:  domain.Classification{Intent: domain.IntentOrder, Confidence: 0.9},
		Update: domain.PartialUpdate{Payment: domain.PaymentCash},
	})
	require.Equal(t, domain.StateFinalizing, d.Next)
	require.Equal(t, domain.ActionOrderReview, d.Action.Kind)
}

func TestFinalizingConfirmCommits(t *testing.T) {
	conv := newConv(domain.StateFinalizing)
	conv.Transaction.Payment = domain.PaymentCash

	d := Decide(Input{Conv: conv, Class: classified(domain.IntentConfirm)})
	require.Equal(t, domain.StateConfirmed, d.Next)
	require.Equal(t, domain.ActionCommitOrder, d.Action.Kind)
	require.True(t, d.Action.IsCommit())
}

func TestFinalizingConfirmWithPixAwaitsPayment(t *testing.T) {
	conv := newConv(domain.StateFinalizing)
	conv.Transaction.Payment = domain.PaymentPix

	d := Decide(Input{Conv: conv, Class: classified(domain.IntentConfirm)})
	require.Equal(t, domain.StateWaitingPayment, d.Next)
	require.Equal(t, domain.ActionCommitAwaitPayment, d.Action.Kind)
}

func TestFinalizingCorrectionStaysInReview(t *testing.T) {
	conv := newConv(domain.StateFinalizing)
	corr := &domain.Correction{Kind: domain.CorrectionQuantity, NewQty: 1, Target: "pizza"}

	d := Decide(Input{Conv: conv, Class: classified(domain.IntentUnknown), Correction: corr})
	require.Equal(t, domain.StateFinalizing, d.Next)
	require.Equal(t, domain.ActionOrderReview, d.Action.Kind)
	require.Equal(t, corr, d.ApplyCorrection)
}

func TestFinalizingDenyAsksForAdjustment(t *testing.T) {
	d := Decide(Input{Conv: newConv(domain.StateFinalizing), Class: classified(domain.IntentDeny)})
	require.Equal(t, domain.StateFinalizing, d.Next)
	require.Equal(t, domain.ActionAskAdjustment, d.Action.Kind)
}

func TestWaitingPaymentFlow(t *testing.T) {
	conv := newConv(domain.StateWaitingPayment)
	conv.Transaction.Payment = domain.PaymentPix

	d := Decide(Input{Conv: conv, Class: classified(domain.IntentPaymentDone)})
	require.Equal(t, domain.StateConfirmed, d.Next)
	require.Equal(t, domain.ActionPaymentReceived, d.Action.Kind)

	d = Decide(Input{Conv: conv, Class: classified(domain.IntentUnknown)})
	require.Equal(t, domain.StateWaitingPayment, d.Next)
	require.Equal(t, domain.ActionPaymentReminder, d.Action.Kind)

	d = Decide(Input{
		Conv:   conv,
		Class:  classified(domain.IntentUnknown),
		Update: domain.PartialUpdate{Payment: domain.PaymentCash},
	})
	require.Equal(t, domain.StateFinalizing, d.Next)
	require.Equal(t, domain.PaymentCash, d.SetPayment)
}

func TestConfirmedRejectsNewOrder(t *testing.T) {
	conv := newConv(domain.StateConfirmed)

	d := Decide(Input{Conv: conv, Class: classified(domain.IntentNewOrder)})
	require.Equal(t, domain.ActionRejectNewOrder, d.Action.Kind)
	require.Equal(t, domain.StateConfirmed, d.Next)

	d = Decide(Input{Conv: conv, Class: classified(domain.IntentQuestion), Question: true})
	require.Equal(t, domain.ActionPostConfirmSupport, d.Action.Kind)
	require.True(t, d.Action.AnswerQuestion)
}

func TestUnactionableTurnIsCounted(t *testing.T) {
	conv := newConv(domain.StateAddingItem)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}

	d := Decide(Input{
		Conv:  conv,
		Class: domain.Classification{Intent: domain.IntentUnknown, Confidence: 0.5},
	})
	require.True(t, d.Unactionable)
	require.Equal(t, domain.ActionClarify, d.Action.Kind)
	require.Equal(t, domain.StateAddingItem, d.Next)
}

func TestDecideNeverMutatesConversation(t *testing.T) {
	conv := newConv(domain.StateAddingItem)
	conv.Transaction.Items = []domain.Item{{Name: "pizza", Quantity: 1}}
	before := *conv

	Decide(Input{
		Conv:   conv,
		Class:  domain.Classification{Intent: domain.IntentFinish, Confidence: 1},
		Update: domain.PartialUpdate{Items: []domain.ItemUpdate{{Name: "pizza", Quantity: 1}}},
	})
	require.Equal(t, before.State, conv.State)
	require.Equal(t, before.ItemsPhaseComplete, conv.ItemsPhaseComplete)
	require.Equal(t, before.Transaction, conv.Transaction)
}
