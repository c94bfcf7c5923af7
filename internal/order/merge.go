// Package order owns the transaction: the merge engine that applies partial
// updates, order validation, and the commit path with provider fallback.
package order

import (
	"strings"

	"order-agent/internal/domain"
	"order-agent/internal/extract"
	"order-agent/internal/textutil"
)

// MergeResult reports what the merge changed.
type MergeResult struct {
	Changed []domain.Field
	// ModeInferred is set when delivery mode was deduced from an address
	// hint; the caller should ask the customer to confirm it.
	ModeInferred bool
}

// Merge applies a partial update onto the conversation's transaction,
// marking changed fields unconfirmed. The default quantity policy is set
// (latest mention replaces the stored quantity); updates flagged incremental
// add instead. Any item-set change clears the items-phase and upsell flags,
// forcing the flow to re-evaluate them.
func Merge(conv *domain.Conversation, upd domain.PartialUpdate) MergeResult {
	var res MergeResult
	txn := &conv.Transaction
	if conv.Confirmed == nil {
		conv.Confirmed = make(map[domain.Field]bool)
	}
	mark := func(f domain.Field) {
		res.Changed = append(res.Changed, f)
		conv.Confirmed[f] = false
	}

	if mergeItems(txn, upd) {
		mark(domain.FieldItems)
		conv.ItemsPhaseComplete = false
		conv.UpsellDone = false
	}

	if upd.Mode != "" && upd.Mode != txn.Mode {
		txn.Mode = upd.Mode
		mark(domain.FieldMode)
	}

	if changed := mergeAddress(txn, upd.Address, mark); changed && txn.Mode == "" {
		// an address hint with no mode ever set implies delivery
		txn.Mode = domain.ModeDelivery
		res.ModeInferred = true
		mark(domain.FieldMode)
	}

	if upd.Payment != "" && upd.Payment != txn.Payment {
		txn.Payment = upd.Payment
		mark(domain.FieldPayment)
	}
	if upd.CustomerName != "" && upd.CustomerName != txn.CustomerName {
		txn.CustomerName = upd.CustomerName
		mark(domain.FieldName)
	}
	if upd.Notes != "" && !strings.Contains(txn.Notes, upd.Notes) {
		if txn.Notes == "" {
			txn.Notes = upd.Notes
		} else {
			txn.Notes += "; " + upd.Notes
		}
	}
	return res
}

func mergeItems(txn *domain.Transaction, upd domain.PartialUpdate) bool {
	changed := false
	for _, iu := range upd.Items {
		if iu.Quantity < 1 || strings.TrimSpace(iu.Name) == "" {
			continue
		}
		idx := findLine(txn.Items, iu.Name)
		if idx < 0 {
			txn.Items = append(txn.Items, domain.Item{Name: iu.Name, Quantity: iu.Quantity})
			changed = true
			continue
		}
		line := &txn.Items[idx]
		if upd.Incremental {
			line.Quantity += iu.Quantity
			changed = true
			continue
		}
		if line.Quantity != iu.Quantity {
			line.Quantity = iu.Quantity
			changed = true
		}
	}
	return changed
}

// findLine matches a mention to an existing cart line by canonical
// (singularized) name equality.
func findLine(items []domain.Item, name string) int {
	want := CanonicalName(name)
	for i, it := range items {
		if CanonicalName(it.Name) == want {
			return i
		}
	}
	return -1
}

// CanonicalName reduces an item name to its normalized singular token form.
func CanonicalName(name string) string {
	return strings.Join(textutil.SingularizeAll(textutil.Tokenize(name)), " ")
}

// mergeAddress merges sub-fields independently, ignoring non-informative
// values. Returns whether any sub-field gained a value.
func mergeAddress(txn *domain.Transaction, upd domain.AddressUpdate, mark func(domain.Field)) bool {
	changed := false
	set := func(dst *string, val string, f domain.Field) {
		if val == "" || extract.IsNonInformativeAddress(textutil.Normalize(val)) || *dst == val {
			return
		}
		*dst = val
		changed = true
		if f != "" {
			mark(f)
		}
	}
	set(&txn.Address.Street, upd.Street, domain.FieldStreet)
	set(&txn.Address.Number, upd.Number, domain.FieldNumber)
	set(&txn.Address.Neighborhood, upd.Neighborhood, domain.FieldNeighborhood)
	set(&txn.Address.City, upd.City, domain.FieldCity)
	set(&txn.Address.State, upd.State, "")
	set(&txn.Address.PostalCode, upd.PostalCode, "")
	return changed
}

// ClearField removes a field's value after the customer rejected it in a
// confirmation prompt.
func ClearField(conv *domain.Conversation, f domain.Field) {
	txn := &conv.Transaction
	switch f {
	case domain.FieldItems:
		txn.Items = nil
		conv.ItemsPhaseComplete = false
		conv.UpsellDone = false
	case domain.FieldMode:
		txn.Mode = ""
	case domain.FieldStreet:
		txn.Address.Street = ""
	case domain.FieldNumber:
		txn.Address.Number = ""
	case domain.FieldNeighborhood:
		txn.Address.Neighborhood = ""
	case domain.FieldCity:
		txn.Address.City = ""
	case domain.FieldPayment:
		txn.Payment = ""
	case domain.FieldName:
		txn.CustomerName = ""
	}
	if conv.Confirmed != nil {
		conv.Confirmed[f] = false
	}
}

// ApplyCorrection applies a quantity correction: it first tries to map the
// correction to a specific cart line by substring match on the target, then
// falls back to reducing every line whose quantity exceeds the new value.
func ApplyCorrection(txn *domain.Transaction, c *domain.Correction) bool {
	if c == nil || c.Kind != domain.CorrectionQuantity || c.NewQty < 1 {
		return false
	}
	changed := false
	if want := CanonicalName(c.Target); want != "" {
		matched := false
		for i := range txn.Items {
			if strings.Contains(CanonicalName(txn.Items[i].Name), want) {
				matched = true
				if txn.Items[i].Quantity != c.NewQty {
					txn.Items[i].Quantity = c.NewQty
					changed = true
				}
			}
		}
		if matched {
			return changed
		}
	}
	for i := range txn.Items {
		if txn.Items[i].Quantity > c.NewQty {
			txn.Items[i].Quantity = c.NewQty
			changed = true
		}
	}
	return changed
}
