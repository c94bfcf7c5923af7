package order

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"order-agent/internal/catalog"
	"order-agent/internal/domain"
)

// Payload is the provider-facing order shape.
type Payload struct {
	IdempotencyKey string         `json:"idempotencyKey"`
	TenantID       string         `json:"tenantId"`
	Channel        string         `json:"channel"`
	Items          []domain.Item  `json:"items"`
	Mode           domain.Mode    `json:"mode"`
	Address        domain.Address `json:"address"`
	Payment        string         `json:"payment"`
	CustomerName   string         `json:"customerName,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	TotalCents     int            `json:"totalCents"`
}

// Result is the provider's answer to an order submission.
type Result struct {
	OK              bool
	OrderID         string
	UnresolvedItems []string
	Message         string
}

// Provider submits orders to a point-of-sale or food-order API.
type Provider interface {
	CreateOrder(ctx context.Context, p Payload) (Result, error)
}

// FeeLoader resolves the delivery fee for an address; ok=false means the
// tenant has no fee configured and none is charged.
type FeeLoader interface {
	LoadDeliveryFee(ctx context.Context, addr domain.Address) (cents int, ok bool, err error)
}

// Committer performs final validation, price recomputation and order
// submission with primary/secondary provider fallback. OrderID is assigned
// exactly once; calls on a transaction that already has one are no-ops.
type Committer struct {
	primary   Provider
	secondary Provider
	fees      FeeLoader
	log       *slog.Logger

	newKey func() string
}

// NewCommitter creates a Committer. secondary and fees may be nil.
func NewCommitter(primary, secondary Provider, fees FeeLoader, log *slog.Logger) (*Committer, error) {
	if primary == nil {
		return nil, errors.New("order: primary provider must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Committer{
		primary:   primary,
		secondary: secondary,
		fees:      fees,
		log:       log,
		newKey:    uuid.NewString,
	}, nil
}

// Commit runs the gate sequence from recompute to submission. On success the
// transaction carries its order id and the customer profile holds the
// completed order as its last-order snapshot.
func (c *Committer) Commit(ctx context.Context, conv *domain.Conversation, profile *domain.CustomerProfile) error {
	txn := &conv.Transaction
	if txn.OrderID != "" {
		// already committed; retries must not create a second order
		return nil
	}

	// price every line we can before recomputing
	res := catalog.ResolveBatch(txn.Items, conv.Catalog)
	if len(res.Unresolved) > 0 {
		return &UnresolvedError{Names: res.Unresolved}
	}
	txn.Items = res.Resolved

	fee := 0
	if txn.Mode == domain.ModeDelivery && c.fees != nil {
		cents, ok, err := c.fees.LoadDeliveryFee(ctx, txn.Address)
		if err != nil {
			c.log.Warn("delivery fee lookup failed, charging none",
				"tenant", conv.TenantID, "err", err)
		} else if ok {
			fee = cents
		}
	}
	txn.DeliveryFeeCents = fee

	want := txn.ItemsTotalCents() + fee
	if diff := txn.TotalAmountCents - want; diff > totalEpsilonCents || diff < -totalEpsilonCents {
		// a stored total is never trusted over the recomputed one
		c.log.Warn("stored total diverged from recomputed total, correcting",
			"tenant", conv.TenantID, "stored", txn.TotalAmountCents, "recomputed", want)
	}
	txn.TotalAmountCents = want

	if err := Validate(txn); err != nil {
		return err
	}

	payload := Payload{
		IdempotencyKey: c.newKey(),
		TenantID:       conv.TenantID,
		Channel:        conv.Channel,
		Items:          txn.Items,
		Mode:           txn.Mode,
		Address:        txn.Address,
		Payment:        txn.Payment,
		CustomerName:   txn.CustomerName,
		Notes:          txn.Notes,
		TotalCents:     txn.TotalAmountCents,
	}

	result, err := c.submit(ctx, payload)
	if err != nil {
		return err
	}

	txn.OrderID = result.OrderID
	if profile != nil {
		profile.TotalOrders++
		profile.LastOrder = txn.Clone()
		if txn.CustomerName != "" {
			profile.Name = txn.CustomerName
		}
	}
	c.log.Info("order committed",
		"tenant", conv.TenantID, "orderId", txn.OrderID, "totalCents", txn.TotalAmountCents)
	return nil
}

func (c *Committer) submit(ctx context.Context, p Payload) (Result, error) {
	result, err := c.primary.CreateOrder(ctx, p)
	if err == nil && result.OK {
		return result, nil
	}
	if err == nil && len(result.UnresolvedItems) > 0 {
		// the provider disagrees with our catalog; the customer has to
		// rename those lines
		return Result{}, &UnresolvedError{Names: result.UnresolvedItems}
	}

	if c.secondary == nil {
		return Result{}, &ProviderError{Err: submissionErr(result, err)}
	}
	c.log.Warn("primary provider failed, trying secondary", "err", submissionErr(result, err))

	result, err = c.secondary.CreateOrder(ctx, p)
	if err == nil && result.OK {
		return result, nil
	}
	if err == nil && len(result.UnresolvedItems) > 0 {
		return Result{}, &UnresolvedError{Names: result.UnresolvedItems}
	}
	return Result{}, &ProviderError{Err: submissionErr(result, err)}
}

func submissionErr(r Result, err error) error {
	if err != nil {
		return err
	}
	if r.Message != "" {
		return errors.New(r.Message)
	}
	return errors.New("provider rejected order")
}
