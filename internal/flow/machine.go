package flow

import (
	"order-agent/internal/domain"
	"order-agent/internal/order"
)

const (
	// handoffConfidenceFloor is the classifier confidence below which the
	// conversation is escalated rather than guessed at.
	handoffConfidenceFloor = 0.45
	// maxConsecutiveFailures is the unactionable-turn count that triggers
	// escalation.
	maxConsecutiveFailures = 3
)

// Input is everything Decide may look at for one grouped inbound message.
// The conversation already reflects this turn's merge; Update and Correction
// describe what the turn contributed.
type Input struct {
	Conv       *domain.Conversation
	Class      domain.Classification
	Update     domain.PartialUpdate
	Correction *domain.Correction

	// ModeInferred is set when this turn's merge deduced delivery from an
	// address hint instead of an explicit statement.
	ModeInferred bool
	// Question marks an interrogative message.
	Question bool
	// Frustrated marks detected frustration language.
	Frustrated bool
	// LastOrderPreview is a short rendering of the customer's previous
	// order, empty when there is none.
	LastOrderPreview string
}

// Decision is the pure outcome of one turn: the next state, the action to
// render, and the side effects the caller applies to the conversation.
// Decide never mutates anything.
type Decision struct {
	Next    domain.State
	Action  domain.Action
	Missing []domain.Field

	// ResetFlow discards the in-progress transaction.
	ResetFlow bool
	// ConfirmPending marks the pending field confirmed and clears the
	// pending marker.
	ConfirmPending bool
	// ClearPendingField empties the pending field's value and clears the
	// marker, after a "no" answer.
	ClearPendingField bool
	// SetPending arms a yes/no confirmation for the named field.
	SetPending domain.Field
	// CompleteItems closes the item-collection phase.
	CompleteItems bool
	// MarkUpsell records that the one-shot upsell was sent.
	MarkUpsell bool
	// OfferRepeat arms the repeat-last-order choice.
	OfferRepeat bool
	// AcceptRepeat loads the last-order snapshot items into the cart.
	AcceptRepeat bool
	// DeclineRepeat clears the repeat-order choice without loading it.
	DeclineRepeat bool
	// ApplyCorrection rewrites line quantities per the detected correction.
	ApplyCorrection *domain.Correction
	// SetPayment overrides the payment method, used when the customer
	// switches away from pix while an order awaits payment.
	SetPayment string
	// Unactionable marks a turn that produced no usable signal; the caller
	// counts these toward escalation.
	Unactionable bool
}

// Decide maps one classified, extracted and merged turn to a Decision.
func Decide(in Input) Decision {
	conv := in.Conv
	state := conv.State

	// escalation overrides every other rule
	if in.Class.Intent == domain.IntentHuman || in.Frustrated ||
		in.Class.Confidence < handoffConfidenceFloor ||
		conv.ConsecutiveFailures >= maxConsecutiveFailures {
		if state == domain.StateHumanHandoff {
			return Decision{Next: state}
		}
		return Decision{Next: domain.StateHumanHandoff, Action: domain.Action{Kind: domain.ActionHandoff}}
	}
	if state == domain.StateHumanHandoff {
		// a human owns the thread; the engine stays silent
		return Decision{Next: state}
	}

	if in.Class.Intent == domain.IntentCancel && state.CartOpen() {
		return Decision{
			Next:      domain.StateInit,
			Action:    domain.Action{Kind: domain.ActionFlowCancelled},
			ResetFlow: true,
		}
	}

	switch state {
	case domain.StateWaitingPayment:
		return decideWaitingPayment(in)
	case domain.StateConfirmed:
		return decideConfirmed(in)
	}

	if conv.AwaitingRepeatChoice {
		return decideRepeatChoice(in)
	}
	if conv.PendingConfirmation != "" {
		return decidePending(in)
	}
	if state == domain.StateFinalizing {
		return decideFinalizing(in)
	}
	return decideCollecting(in)
}

func decideCollecting(in Input) Decision {
	conv := in.Conv
	cartEmpty := len(conv.Transaction.Items) == 0

	if in.Class.Intent == domain.IntentGreeting && cartEmpty {
		if in.LastOrderPreview != "" {
			return Decision{
				Next:        domain.StateMenu,
				Action:      domain.Action{Kind: domain.ActionOfferRepeat, Preview: in.LastOrderPreview},
				OfferRepeat: true,
			}
		}
		return Decision{Next: domain.StateMenu, Action: domain.Action{Kind: domain.ActionGreet}}
	}

	// a deduced mode is never silently trusted
	if in.ModeInferred {
		return Decision{
			Next:       domain.StateConfirmingCart,
			Action:     domain.Action{Kind: domain.ActionConfirmField, Field: domain.FieldMode},
			SetPending: domain.FieldMode,
		}
	}

	if in.Correction != nil {
		d := routeMissing(in, false)
		d.ApplyCorrection = in.Correction
		return d
	}

	if in.Class.Intent == domain.IntentUnknown && in.Update.Empty() {
		return Decision{
			Next:         conv.State,
			Action:       domain.Action{Kind: domain.ActionClarify, AnswerQuestion: in.Question},
			Unactionable: true,
		}
	}

	completeItems := in.Class.Intent == domain.IntentFinish && !cartEmpty
	return routeMissing(in, completeItems)
}

// routeMissing targets the first still-missing field, or moves to review when
// nothing is missing. completeItems evaluates the turn as if the items phase
// were already closed.
func routeMissing(in Input, completeItems bool) Decision {
	conv := in.Conv

	if !completeItems && !conv.ItemsPhaseComplete && !conv.UpsellDone &&
		len(conv.Transaction.Items) > 0 && len(in.Update.Items) > 0 && !in.Question {
		return Decision{
			Next:       domain.StateAddingItem,
			Action:     domain.Action{Kind: domain.ActionUpsellSuggest},
			MarkUpsell: true,
		}
	}

	missing := missingAfter(conv, completeItems)
	if len(missing) == 0 {
		return Decision{
			Next:          domain.StateFinalizing,
			Action:        domain.Action{Kind: domain.ActionOrderReview},
			CompleteItems: completeItems,
		}
	}
	d := Decision{
		Next:          StateForField(missing[0]),
		Action:        askAction(missing),
		Missing:       missing,
		CompleteItems: completeItems,
	}
	if in.Question {
		d.Action.AnswerQuestion = true
	}
	return d
}

func decidePending(in Input) Decision {
	conv := in.Conv
	pending := conv.PendingConfirmation

	switch in.Class.Intent {
	case domain.IntentConfirm:
		d := routeMissing(in, false)
		d.ConfirmPending = true
		return d
	case domain.IntentDeny:
		return Decision{
			Next:              StateForField(pending),
			Action:            askAction([]domain.Field{pending}),
			ClearPendingField: true,
		}
	}
	if !in.Update.Empty() {
		// the answer restated the value instead of saying yes; the merge
		// already took it
		d := routeMissing(in, false)
		d.ConfirmPending = true
		return d
	}
	return Decision{
		Next:   conv.State,
		Action: domain.Action{Kind: domain.ActionReaskConfirmation, Field: pending, AnswerQuestion: in.Question},
	}
}

func decideFinalizing(in Input) Decision {
	conv := in.Conv

	if in.Correction != nil {
		return Decision{
			Next:            domain.StateFinalizing,
			Action:          domain.Action{Kind: domain.ActionOrderReview},
			ApplyCorrection: in.Correction,
		}
	}
	switch in.Class.Intent {
	case domain.IntentConfirm:
		if conv.Transaction.Payment == domain.PaymentPix {
			return Decision{
				Next:   domain.StateWaitingPayment,
				Action: domain.Action{Kind: domain.ActionCommitAwaitPayment},
			}
		}
		return Decision{
			Next:   domain.StateConfirmed,
			Action: domain.Action{Kind: domain.ActionCommitOrder},
		}
	case domain.IntentDeny:
		return Decision{Next: domain.StateFinalizing, Action: domain.Action{Kind: domain.ActionAskAdjustment}}
	}
	if !in.Update.Empty() {
		// the review was edited in place; re-route in case the edit opened
		// a gap, then show the updated review
		return routeMissing(in, true)
	}
	if in.Question {
		return Decision{
			Next:   domain.StateFinalizing,
			Action: domain.Action{Kind: domain.ActionClarify, AnswerQuestion: true},
		}
	}
	return Decision{Next: domain.StateFinalizing, Action: domain.Action{Kind: domain.ActionOrderReview}}
}

func decideWaitingPayment(in Input) Decision {
	switch {
	case in.Class.Intent == domain.IntentPaymentDone:
		return Decision{
			Next:   domain.StateConfirmed,
			Action: domain.Action{Kind: domain.ActionPaymentReceived},
		}
	case in.Class.Intent == domain.IntentCancel:
		// the submitted order stands for the operator to reconcile; the
		// cart reopens so the customer can sort it out or hand off
		return Decision{Next: domain.StateAddingItem, Action: domain.Action{Kind: domain.ActionAskItems}}
	case in.Update.Payment != "" && in.Update.Payment != domain.PaymentPix:
		return Decision{
			Next:       domain.StateFinalizing,
			Action:     domain.Action{Kind: domain.ActionOrderReview},
			SetPayment: in.Update.Payment,
		}
	case in.Question:
		return Decision{
			Next:   domain.StateWaitingPayment,
			Action: domain.Action{Kind: domain.ActionClarify, AnswerQuestion: true},
		}
	}
	return Decision{Next: domain.StateWaitingPayment, Action: domain.Action{Kind: domain.ActionPaymentReminder}}
}

func decideConfirmed(in Input) Decision {
	if in.Class.Intent == domain.IntentNewOrder {
		return Decision{
			Next:   domain.StateConfirmed,
			Action: domain.Action{Kind: domain.ActionRejectNewOrder},
		}
	}
	return Decision{
		Next:   domain.StateConfirmed,
		Action: domain.Action{Kind: domain.ActionPostConfirmSupport, AnswerQuestion: in.Question},
	}
}

func decideRepeatChoice(in Input) Decision {
	switch in.Class.Intent {
	case domain.IntentConfirm:
		// the snapshot fills the cart; logistics are collected fresh
		return Decision{
			Next:          domain.StateConfirmingCart,
			Action:        domain.Action{Kind: domain.ActionAskMode},
			AcceptRepeat:  true,
			CompleteItems: true,
			MarkUpsell:    true,
		}
	case domain.IntentDeny:
		return Decision{
			Next:          domain.StateAddingItem,
			Action:        domain.Action{Kind: domain.ActionAskItems},
			DeclineRepeat: true,
		}
	}
	// anything else declines implicitly and flows as a normal turn
	d := decideCollecting(in)
	d.DeclineRepeat = true
	return d
}

// missingAfter is order.MissingFields with this turn's phase-closing signal
// applied.
func missingAfter(conv *domain.Conversation, completeItems bool) []domain.Field {
	if completeItems && !conv.ItemsPhaseComplete {
		tmp := *conv
		tmp.ItemsPhaseComplete = true
		return order.MissingFields(&tmp)
	}
	return order.MissingFields(conv)
}

// StateForField maps a missing field to the collection state that gathers it.
func StateForField(f domain.Field) domain.State {
	switch f {
	case domain.FieldItems:
		return domain.StateAddingItem
	case domain.FieldMode:
		return domain.StateConfirmingCart
	case domain.FieldStreet, domain.FieldNumber, domain.FieldNeighborhood, domain.FieldCity:
		return domain.StateCollectingAddress
	case domain.FieldPayment:
		return domain.StateCollectingPayment
	}
	return domain.StateAddingItem
}

func askAction(missing []domain.Field) domain.Action {
	switch missing[0] {
	case domain.FieldItems:
		return domain.Action{Kind: domain.ActionAskItems}
	case domain.FieldMode:
		return domain.Action{Kind: domain.ActionAskMode}
	case domain.FieldPayment:
		return domain.Action{Kind: domain.ActionAskPayment}
	}
	var addr []domain.Field
	for _, f := range missing {
		switch f {
		case domain.FieldStreet, domain.FieldNumber, domain.FieldNeighborhood, domain.FieldCity:
			addr = append(addr, f)
		}
	}
	return domain.Action{Kind: domain.ActionAskAddress, Missing: addr}
}
