package domain

import "time"

// Field names a transaction slot the flow can target, confirm or clear.
type Field string

const (
	FieldItems        Field = "items"
	FieldMode         Field = "mode"
	FieldStreet       Field = "street"
	FieldNumber       Field = "number"
	FieldNeighborhood Field = "neighborhood"
	FieldCity         Field = "city"
	FieldPayment      Field = "payment"
	FieldName         Field = "name"
)

// MaxMessageLog bounds the per-conversation message log.
const MaxMessageLog = 30

// Message is one logged turn fragment, inbound or outbound.
type Message struct {
	Direction string    `json:"direction"` // "in" or "out"
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// CatalogEntry is one priced menu item. Immutable per load; cached on the
// conversation for its lifetime.
type CatalogEntry struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	UnitPriceCents int    `json:"unitPriceCents"`
}

// Conversation is the per (tenant, customer channel address) session that
// the engine mutates turn by turn.
type Conversation struct {
	TenantID string `json:"tenantId"`
	Channel  string `json:"channel"`

	State          State     `json:"state"`
	StateUpdatedAt time.Time `json:"stateUpdatedAt"`

	Transaction Transaction    `json:"transaction"`
	Confirmed   map[Field]bool `json:"confirmed,omitempty"`

	// PendingConfirmation names the single field awaiting a yes/no answer,
	// or is empty.
	PendingConfirmation Field `json:"pendingConfirmation,omitempty"`

	ItemsPhaseComplete  bool `json:"itemsPhaseComplete"`
	UpsellDone          bool `json:"upsellDone"`
	ConsecutiveFailures int  `json:"consecutiveFailures"`

	LastProcessedHash string    `json:"lastProcessedHash,omitempty"`
	Messages          []Message `json:"messages,omitempty"`

	Catalog []CatalogEntry `json:"catalog,omitempty"`

	AwaitingRepeatChoice bool   `json:"awaitingRepeatChoice,omitempty"`
	RepeatPreview        string `json:"repeatPreview,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewConversation creates a fresh session in INIT.
func NewConversation(tenantID, channel string, now time.Time) *Conversation {
	return &Conversation{
		TenantID:       tenantID,
		Channel:        channel,
		State:          StateInit,
		StateUpdatedAt: now,
		Confirmed:      make(map[Field]bool),
		CreatedAt:      now,
	}
}

// Key returns the conversation's unique key.
func (c *Conversation) Key() string {
	return c.TenantID + "#" + c.Channel
}

// AppendMessage adds a turn to the bounded message log.
func (c *Conversation) AppendMessage(direction, text string, at time.Time) {
	c.Messages = append(c.Messages, Message{Direction: direction, Text: text, At: at})
	if n := len(c.Messages); n > MaxMessageLog {
		c.Messages = c.Messages[n-MaxMessageLog:]
	}
}

// ResetFlow clears the in-progress order while keeping identity, message log
// and cached catalog. Used on cancel and TTL rotation.
func (c *Conversation) ResetFlow(now time.Time) {
	c.State = StateInit
	c.StateUpdatedAt = now
	c.Transaction = Transaction{}
	c.Confirmed = make(map[Field]bool)
	c.PendingConfirmation = ""
	c.ItemsPhaseComplete = false
	c.UpsellDone = false
	c.ConsecutiveFailures = 0
	c.AwaitingRepeatChoice = false
	c.RepeatPreview = ""
}
