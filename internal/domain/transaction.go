package domain

// Mode is how the customer receives the order.
type Mode string

const (
	ModeDelivery Mode = "DELIVERY"
	ModeTakeout  Mode = "TAKEOUT"
)

// Payment method identifiers accepted at commit time.
const (
	PaymentPix  = "PIX"
	PaymentCard = "CARD"
	PaymentCash = "CASH"
)

// ValidPayment reports whether p is an accepted payment method.
func ValidPayment(p string) bool {
	return p == PaymentPix || p == PaymentCard || p == PaymentCash
}

// Item is one cart line. CatalogCode and UnitPriceCents are zero until the
// line has been resolved against the tenant catalog.
type Item struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	CatalogCode    string `json:"catalogCode,omitempty"`
	UnitPriceCents int    `json:"unitPriceCents,omitempty"`
}

// Address holds the delivery address, collected sub-field by sub-field.
type Address struct {
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
}

// Transaction is the order being assembled. It is mutated only by the merge
// engine and the committer; everything else reads it.
type Transaction struct {
	Items            []Item  `json:"items,omitempty"`
	Mode             Mode    `json:"mode,omitempty"`
	Address          Address `json:"address"`
	Payment          string  `json:"payment,omitempty"`
	CustomerName     string  `json:"customerName,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	DeliveryFeeCents int     `json:"deliveryFeeCents,omitempty"`
	TotalAmountCents int     `json:"totalAmountCents,omitempty"`

	// OrderID is set exactly once, on successful provider submission.
	OrderID string `json:"orderId,omitempty"`
}

// ItemsTotalCents sums unit price times quantity over all resolved lines.
func (t *Transaction) ItemsTotalCents() int {
	total := 0
	for _, it := range t.Items {
		total += it.UnitPriceCents * it.Quantity
	}
	return total
}

// Clone returns a deep copy, used for last-order snapshots.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	cp.Items = make([]Item, len(t.Items))
	copy(cp.Items, t.Items)
	return &cp
}
