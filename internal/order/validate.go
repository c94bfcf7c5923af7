package order

import (
	"fmt"

	"order-agent/internal/domain"
)

// totalEpsilonCents is the tolerated gap between the stored total and the
// recomputed one; anything above it is corrected before commit proceeds.
const totalEpsilonCents = 1

// ValidationError is a user-correctable order problem found at commit.
type ValidationError struct {
	Reason string
	Field  domain.Field
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order: validation failed: %s", e.Reason)
}

// UnresolvedError blocks commit when cart lines cannot be mapped to the
// catalog.
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("order: unresolved items: %v", e.Names)
}

// ProviderError is a transient submission failure after all configured
// providers were tried.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("order: provider submission failed: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Validate runs the full pre-submission check. It never mutates the
// transaction.
func Validate(txn *domain.Transaction) error {
	if len(txn.Items) == 0 {
		return &ValidationError{Reason: "empty_cart", Field: domain.FieldItems}
	}
	for _, it := range txn.Items {
		if it.Quantity <= 0 {
			return &ValidationError{Reason: "invalid_quantity", Field: domain.FieldItems}
		}
	}
	if txn.Mode != domain.ModeDelivery && txn.Mode != domain.ModeTakeout {
		return &ValidationError{Reason: "missing_mode", Field: domain.FieldMode}
	}
	if txn.Mode == domain.ModeDelivery {
		switch {
		case txn.Address.Street == "":
			return &ValidationError{Reason: "incomplete_address", Field: domain.FieldStreet}
		case txn.Address.Number == "":
			return &ValidationError{Reason: "incomplete_address", Field: domain.FieldNumber}
		case txn.Address.Neighborhood == "":
			return &ValidationError{Reason: "incomplete_address", Field: domain.FieldNeighborhood}
		case txn.Address.City == "":
			return &ValidationError{Reason: "incomplete_address", Field: domain.FieldCity}
		}
	}
	if !domain.ValidPayment(txn.Payment) {
		return &ValidationError{Reason: "invalid_payment", Field: domain.FieldPayment}
	}
	want := txn.ItemsTotalCents() + txn.DeliveryFeeCents
	if diff := txn.TotalAmountCents - want; diff > totalEpsilonCents || diff < -totalEpsilonCents {
		return &ValidationError{Reason: "total_mismatch", Field: domain.FieldItems}
	}
	return nil
}

// MissingFields returns the ordered list of fields still required before the
// order can be reviewed: items, then mode, then the delivery address
// sub-fields (delivery only), then payment.
func MissingFields(conv *domain.Conversation) []domain.Field {
	var missing []domain.Field
	txn := &conv.Transaction
	if len(txn.Items) == 0 || !conv.ItemsPhaseComplete {
		missing = append(missing, domain.FieldItems)
	}
	if txn.Mode == "" {
		missing = append(missing, domain.FieldMode)
	}
	if txn.Mode == domain.ModeDelivery {
		if txn.Address.Street == "" {
			missing = append(missing, domain.FieldStreet)
		}
		if txn.Address.Number == "" {
			missing = append(missing, domain.FieldNumber)
		}
		if txn.Address.Neighborhood == "" {
			missing = append(missing, domain.FieldNeighborhood)
		}
		if txn.Address.City == "" {
			missing = append(missing, domain.FieldCity)
		}
	}
	if txn.Payment == "" {
		missing = append(missing, domain.FieldPayment)
	}
	return missing
}
