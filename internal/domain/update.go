package domain

// ItemUpdate is one item mention found in a message. Quantity is always ≥1;
// when the source text carried no explicit multiplicity marker it is 1.
type ItemUpdate struct {
	Name     string
	Quantity int
}

// AddressUpdate carries only the address sub-fields found in a message.
// Empty strings mean "not mentioned".
type AddressUpdate struct {
	Street       string
	Number       string
	Neighborhood string
	City         string
	State        string
	PostalCode   string
}

// Empty reports whether no sub-field was found.
func (a AddressUpdate) Empty() bool {
	return a == AddressUpdate{}
}

// PartialUpdate is the extraction output for one grouped message. Absent
// fields are zero values and are never defaulted downstream.
type PartialUpdate struct {
	Items []ItemUpdate

	// Incremental is set when the message carried an explicit additive cue
	// ("more", "add", "also", "missed"); it applies to every item in this
	// update.
	Incremental bool

	Mode         Mode
	Payment      string
	CustomerName string
	Notes        string
	Address      AddressUpdate
}

// Empty reports whether the update carries no information at all.
func (u *PartialUpdate) Empty() bool {
	return len(u.Items) == 0 && u.Mode == "" && u.Payment == "" &&
		u.CustomerName == "" && u.Notes == "" && u.Address.Empty()
}

// CorrectionKind discriminates correction phrasings.
type CorrectionKind string

const (
	// CorrectionQuantity is "only one X" / "correct to N" phrasing.
	CorrectionQuantity CorrectionKind = "quantity"
)

// Correction is the deterministic correction-detector output. It bypasses
// normal merge semantics.
type Correction struct {
	Kind   CorrectionKind
	NewQty int
	// Target is the free-text item reference, possibly empty.
	Target string
}
