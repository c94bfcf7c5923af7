package domain

// State is the conversation's position in the order-taking flow.
type State string

const (
	StateInit              State = "INIT"
	StateMenu              State = "MENU"
	StateAddingItem        State = "ADDING_ITEM"
	StateConfirmingCart    State = "CONFIRMING_CART"
	StateCollectingAddress State = "COLLECTING_ADDRESS"
	StateCollectingPayment State = "COLLECTING_PAYMENT"
	StateFinalizing        State = "FINALIZING"
	StateWaitingPayment    State = "WAITING_PAYMENT"
	StateConfirmed         State = "CONFIRMED"
	StateHumanHandoff      State = "HUMAN_HANDOFF"
	StateClosed            State = "CLOSED"
)

// Known reports whether s is a member of the current state enum. Snapshots
// persisted by older builds may carry states outside it.
func (s State) Known() bool {
	switch s {
	case StateInit, StateMenu, StateAddingItem, StateConfirmingCart,
		StateCollectingAddress, StateCollectingPayment, StateFinalizing,
		StateWaitingPayment, StateConfirmed, StateHumanHandoff, StateClosed:
		return true
	}
	return false
}

// CartOpen reports whether the conversation still has an uncommitted cart
// that may be auto-cancelled after prolonged silence. Payment-wait and
// terminal states are excluded so an order being paid is never cancelled
// underneath the customer.
func (s State) CartOpen() bool {
	switch s {
	case StateAddingItem, StateConfirmingCart, StateCollectingAddress,
		StateCollectingPayment, StateFinalizing:
		return true
	}
	return false
}

// MidFlow reports whether the customer is between starting and finishing an
// order, which shortens the inactivity rotation TTL.
func (s State) MidFlow() bool {
	return s.CartOpen() || s == StateWaitingPayment
}
