package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Getter resolves SSM parameters; the gateway API token lives there.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client sends outbound messages through the WhatsApp gateway.
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

// NewClient creates a gateway client. tokenParam names the SSM parameter with
// the gateway token; empty means the gateway is unauthenticated.
func NewClient(baseURL string, ps Getter, tokenParam string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("transport: base URL must not be empty")
	}
	if tokenParam != "" && ps == nil {
		return nil, errors.New("transport: paramstore getter must not be nil when a token parameter is set")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
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

type sendRequest struct {
	TenantID string `json:"tenantId"`
	To       string `json:"to"`
	Text     string `json:"text"`
}

// Send delivers one text message to the customer.
func (c *Client) Send(ctx context.Context, tenantID, to, text string) error {
	if to == "" {
		return errors.New("transport: recipient must not be empty")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("transport: message text must not be empty")
	}

	token, err := c.resolveToken(ctx)
	if err != nil {
		return fmt.Errorf("transport: resolve token: %w", err)
	}

	body, err := json.Marshal(sendRequest{TenantID: tenantID, To: to, Text: text})
	if err != nil {
		return fmt.Errorf("transport: marshal message: %w", err)
	}

	url := c.baseURL + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transport: send failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("transport: unexpected status %d from %s: %s", res.StatusCode, url, string(buf))
	}
	return nil
}
