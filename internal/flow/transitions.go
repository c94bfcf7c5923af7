package flow

import "order-agent/internal/domain"

// validTransitions is the per-state allow-list. Self-transitions are always
// permitted and are not listed.
var validTransitions = map[domain.State][]domain.State{
	domain.StateInit: {
		domain.StateMenu, domain.StateAddingItem, domain.StateHumanHandoff,
		domain.StateClosed,
	},
	domain.StateMenu: {
		domain.StateInit, domain.StateAddingItem, domain.StateConfirmingCart,
		domain.StateHumanHandoff, domain.StateClosed,
	},
	domain.StateAddingItem: {
		domain.StateInit, domain.StateConfirmingCart, domain.StateCollectingAddress,
		domain.StateCollectingPayment, domain.StateFinalizing, domain.StateHumanHandoff,
	},
	domain.StateConfirmingCart: {
		domain.StateInit, domain.StateAddingItem, domain.StateCollectingAddress,
		domain.StateCollectingPayment, domain.StateFinalizing, domain.StateHumanHandoff,
	},
	domain.StateCollectingAddress: {
		domain.StateInit, domain.StateAddingItem, domain.StateConfirmingCart,
		domain.StateCollectingPayment, domain.StateFinalizing, domain.StateHumanHandoff,
	},
	domain.StateCollectingPayment: {
		domain.StateInit, domain.StateAddingItem, domain.StateConfirmingCart,
		domain.StateCollectingAddress, domain.StateFinalizing, domain.StateHumanHandoff,
	},
	domain.StateFinalizing: {
		domain.StateInit, domain.StateAddingItem, domain.StateConfirmingCart,
		domain.StateCollectingAddress, domain.StateCollectingPayment,
		domain.StateWaitingPayment, domain.StateConfirmed, domain.StateHumanHandoff,
	},
	domain.StateWaitingPayment: {
		domain.StateInit, domain.StateAddingItem, domain.StateFinalizing,
		domain.StateConfirmed, domain.StateHumanHandoff,
	},
	domain.StateConfirmed: {
		domain.StateInit, domain.StateClosed, domain.StateHumanHandoff,
	},
	domain.StateHumanHandoff: {
		domain.StateInit, domain.StateClosed,
	},
	domain.StateClosed: {
		domain.StateInit, domain.StateMenu, domain.StateAddingItem,
		domain.StateHumanHandoff,
	},
}

// ValidTransition reports whether from→to is allowed. Source states absent
// from the table are treated permissively: snapshots written by older builds
// may carry renamed states, and blocking them would strand the conversation.
func ValidTransition(from, to domain.State) bool {
	if from == to {
		return true
	}
	allowed, ok := validTransitions[from]
	if !ok {
		// unknown state = permissive, by explicit policy
		return true
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
