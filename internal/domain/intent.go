package domain

// Intent is the classified purpose of a grouped inbound message.
type Intent string

const (
	IntentGreeting    Intent = "greeting"
	IntentOrder       Intent = "order"
	IntentConfirm     Intent = "confirm"
	IntentDeny        Intent = "deny"
	IntentFinish      Intent = "finish"
	IntentCancel      Intent = "cancel"
	IntentHuman       Intent = "human"
	IntentQuestion    Intent = "question"
	IntentPaymentDone Intent = "payment_done"
	IntentNewOrder    Intent = "new_order"
	IntentUnknown     Intent = "unknown"
)

// Classification is the classifier output, from the LLM capability or the
// deterministic rule fallback.
type Classification struct {
	Intent             Intent
	RequiresExtraction bool
	Confidence         float64
}
