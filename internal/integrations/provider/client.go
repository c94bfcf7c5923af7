package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"order-agent/internal/domain"
	"order-agent/internal/order"
)

// Getter resolves SSM parameters; the provider API token lives there.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("provider: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to one tenant's point-of-sale order API. It satisfies both
// order.Provider and order.FeeLoader.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	tokenParam string

	keyOnce sync.Once
	token   string
	keyErr  error
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the tenant's provider at baseURL. tokenParam
// names the SSM parameter with the API token; empty means the provider is
// unauthenticated.
func NewClient(baseURL string, ps Getter, tokenParam string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("provider: base URL must not be empty")
	}
	if tokenParam != "" && ps == nil {
		return nil, errors.New("provider: paramstore getter must not be nil when a token parameter is set")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		getter:     ps,
		tokenParam: tokenParam,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	if c.tokenParam == "" {
		return "", nil
	}
	c.keyOnce.Do(func() {
		c.token, c.keyErr = c.getter.GetParameter(ctx, c.tokenParam)
	})
	return c.token, c.keyErr
}

type orderResponse struct {
	OK              bool     `json:"ok"`
	OrderID         string   `json:"orderId"`
	UnresolvedItems []string `json:"unresolvedItems,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// CreateOrder submits the payload to POST /orders. The payload's idempotency
// key also travels as a header so the provider can dedupe retries.
func (c *Client) CreateOrder(ctx context.Context, p order.Payload) (order.Result, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return order.Result{}, fmt.Errorf("provider: marshal order: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/orders", body, p.IdempotencyKey)
	if err != nil {
		return order.Result{}, err
	}

	var payload orderResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return order.Result{}, fmt.Errorf("provider: decode order response: %w", err)
	}
	if payload.OK && payload.OrderID == "" {
		return order.Result{}, errors.New("provider: accepted order without an id")
	}
	return order.Result{
		OK:              payload.OK,
		OrderID:         payload.OrderID,
		UnresolvedItems: payload.UnresolvedItems,
		Message:         payload.Message,
	}, nil
}

type catalogResponse struct {
	Items []domain.CatalogEntry `json:"items"`
}

// LoadCatalog fetches the tenant's priced menu from GET /catalog.
func (c *Client) LoadCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/catalog", nil, "")
	if err != nil {
		return nil, err
	}

	var payload catalogResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("provider: decode catalog: %w", err)
	}
	if len(payload.Items) == 0 {
		return nil, errors.New("provider: catalog is empty")
	}
	return payload.Items, nil
}

type feeResponse struct {
	FeeCents  int  `json:"feeCents"`
	Available bool `json:"available"`
}

// LoadDeliveryFee resolves the fee for an address from GET /delivery-fee.
// ok=false means the provider has no fee table for the neighborhood and none
// is charged.
func (c *Client) LoadDeliveryFee(ctx context.Context, addr domain.Address) (int, bool, error) {
	q := url.Values{}
	q.Set("neighborhood", addr.Neighborhood)
	q.Set("city", addr.City)

	raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/delivery-fee?"+q.Encode(), nil, "")
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}

	var payload feeResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, false, fmt.Errorf("provider: decode delivery fee: %w", err)
	}
	return payload.FeeCents, payload.Available, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, idempotencyKey string) ([]byte, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider: resolve token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("provider: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("provider: read response body: %w", err)
	}
	return buf, nil
}
