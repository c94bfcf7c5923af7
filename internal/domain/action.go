package domain

// ActionKind is the closed set of outcomes the flow engine can select. Each
// maps to one reply template in the usecase layer.
type ActionKind string

const (
	ActionGreet              ActionKind = "GREET"
	ActionClarify            ActionKind = "CLARIFY"
	ActionAskItems           ActionKind = "ASK_ITEMS"
	ActionUpsellSuggest      ActionKind = "UPSELL_SUGGEST"
	ActionAskMode            ActionKind = "ASK_MODE"
	ActionAskAddress         ActionKind = "ASK_ADDRESS"
	ActionAskPayment         ActionKind = "ASK_PAYMENT"
	ActionConfirmField       ActionKind = "CONFIRM_FIELD"
	ActionReaskConfirmation  ActionKind = "REASK_CONFIRMATION"
	ActionOrderReview        ActionKind = "ORDER_REVIEW"
	ActionAskAdjustment      ActionKind = "ASK_ADJUSTMENT"
	ActionCommitOrder        ActionKind = "COMMIT_ORDER"
	ActionCommitAwaitPayment ActionKind = "COMMIT_AWAIT_PAYMENT"
	ActionPaymentReminder    ActionKind = "PAYMENT_REMINDER"
	ActionPaymentReceived    ActionKind = "PAYMENT_RECEIVED"
	ActionFlowCancelled      ActionKind = "FLOW_CANCELLED"
	ActionHandoff            ActionKind = "HANDOFF"
	ActionRejectNewOrder     ActionKind = "REJECT_NEW_ORDER"
	ActionPostConfirmSupport ActionKind = "POST_CONFIRM_SUPPORT"
	ActionOfferRepeat        ActionKind = "OFFER_REPEAT"

	// Emitted by the usecase layer, not the flow engine.
	ActionItemNotFound     ActionKind = "ITEM_NOT_FOUND"
	ActionValidationFailed ActionKind = "VALIDATION_FAILED"
	ActionTransientFailure ActionKind = "TRANSIENT_FAILURE"
	ActionRetry            ActionKind = "RETRY"
	ActionStillThere       ActionKind = "STILL_THERE"
	ActionAutoCancelled    ActionKind = "AUTO_CANCELLED"
)

// Action carries the selected kind plus the minimal payload reply rendering
// needs.
type Action struct {
	Kind ActionKind

	// Field for CONFIRM_FIELD / REASK_CONFIRMATION.
	Field Field
	// Missing for ASK_ADDRESS: the address sub-fields still empty.
	Missing []Field
	// Names for ITEM_NOT_FOUND.
	Names []string
	// Preview for OFFER_REPEAT and ORDER_REVIEW.
	Preview string
	// AnswerQuestion marks that the message embedded a question that the
	// reply should address before re-asking.
	AnswerQuestion bool
	// Reason carries a short template key for VALIDATION_FAILED.
	Reason string
}

// IsCommit reports whether the action triggers order submission.
func (a Action) IsCommit() bool {
	return a.Kind == ActionCommitOrder || a.Kind == ActionCommitAwaitPayment
}
