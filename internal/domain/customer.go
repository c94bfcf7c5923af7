package domain

import "time"

// MaxRecentContext bounds the per-customer recent-turn memory kept for
// reply-generation continuity.
const MaxRecentContext = 10

// CustomerProfile is the per (tenant, phone) record that survives across
// conversations. Never deleted except by explicit clear.
type CustomerProfile struct {
	TenantID    string    `json:"tenantId"`
	Phone       string    `json:"phone"`
	Name        string    `json:"name,omitempty"`
	TotalOrders int       `json:"totalOrders"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`

	// LastOrder is an immutable snapshot of the most recent completed
	// transaction, kept for repeat-order offers.
	LastOrder *Transaction `json:"lastOrder,omitempty"`

	RecentContext []string `json:"recentContext,omitempty"`
}

// Remember appends a turn summary to the bounded recent-context memory.
func (p *CustomerProfile) Remember(turn string) {
	p.RecentContext = append(p.RecentContext, turn)
	if n := len(p.RecentContext); n > MaxRecentContext {
		p.RecentContext = p.RecentContext[n-MaxRecentContext:]
	}
}
