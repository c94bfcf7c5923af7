package llm

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

	"order-agent/internal/domain"
)

// ChatMessage is one turn in a chat-completions request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaConfig `json:"json_schema"`
}

type jsonSchemaConfig struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	Choices []struct {
		Index   int         `json:"index"`
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

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
	return fmt.Sprintf("llm: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused OpenAI-compatible client used for intent classification,
// extraction fallback and reply phrasing. All three are optional capabilities;
// callers fall back to deterministic rules and templates when a call fails.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client backed by the given paramstore getter for
// API key retrieval. The key is fetched from SSM on the first call and reused
// for the lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("llm: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("llm: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     "https://api.openai.com/v1",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPIKey fetches the API key from SSM on the first call and returns the
// cached result on every subsequent call within the same process lifetime.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
	})
	return c.apiKey, c.keyErr
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/llm-api-token"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

func (c *Client) chat(ctx context.Context, model string, messages []ChatMessage, format *responseFormat) (string, error) {
	if model == "" {
		return "", errors.New("llm: model must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model:          model,
		Messages:       messages,
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("llm: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("llm: decode response: %w", decErr)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("llm: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

func classificationResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "intent_classification",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"intent":{"type":"string"},
					"requires_extraction":{"type":"boolean"},
					"confidence":{"type":"number"}
				},
				"required":["intent","requires_extraction","confidence"]
			}`),
		},
	}
}

type classificationPayload struct {
	Intent             string  `json:"intent"`
	RequiresExtraction bool    `json:"requires_extraction"`
	Confidence         float64 `json:"confidence"`
}

const classifySystemPrompt = `You classify WhatsApp messages sent to a restaurant order bot.
The conversation state is given; answer with one intent out of:
greeting, order, confirm, deny, finish, cancel, human, question, payment_done, new_order, unknown.
Set requires_extraction when the message may contain items, address, payment or name data.
Confidence is your certainty in [0,1].`

// Classify asks the model for the message intent. The result is rejected and
// an error returned when the intent is outside the known set, so the caller
// can fall back to the rule classifier.
func (c *Client) Classify(ctx context.Context, model string, state domain.State, text string) (domain.Classification, error) {
	content, err := c.chat(ctx, model, []ChatMessage{
		{Role: "system", Content: classifySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("state: %s\nmessage: %s", state, text)},
	}, classificationResponseFormat())
	if err != nil {
		return domain.Classification{}, err
	}

	var payload classificationPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return domain.Classification{}, fmt.Errorf("llm: decode classification: %w", err)
	}
	intent := domain.Intent(payload.Intent)
	switch intent {
	case domain.IntentGreeting, domain.IntentOrder, domain.IntentConfirm, domain.IntentDeny,
		domain.IntentFinish, domain.IntentCancel, domain.IntentHuman, domain.IntentQuestion,
		domain.IntentPaymentDone, domain.IntentNewOrder, domain.IntentUnknown:
	default:
		return domain.Classification{}, fmt.Errorf("llm: unknown intent %q", payload.Intent)
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return domain.Classification{}, fmt.Errorf("llm: confidence %v out of range", payload.Confidence)
	}
	return domain.Classification{
		Intent:             intent,
		RequiresExtraction: payload.RequiresExtraction,
		Confidence:         payload.Confidence,
	}, nil
}

func replyResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "reply_phrasing",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"reply":{"type":"string"}
				},
				"required":["reply"]
			}`),
		},
	}
}

type replyPayload struct {
	Reply string `json:"reply"`
}

const replySystemPrompt = `You phrase short, friendly WhatsApp replies for a restaurant order bot,
in the customer's language. You are given the reply the bot intends to send and the customer's
message. Rephrase naturally without changing prices, items, or what is being asked. Never invent
menu items or promises.`

// GenerateReply rephrases a template reply. Failures leave the caller with
// the template, which is always safe to send.
func (c *Client) GenerateReply(ctx context.Context, model, template, customerMessage string) (string, error) {
	content, err := c.chat(ctx, model, []ChatMessage{
		{Role: "system", Content: replySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("intended reply: %s\ncustomer message: %s", template, customerMessage)},
	}, replyResponseFormat())
	if err != nil {
		return "", err
	}

	var payload replyPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return "", fmt.Errorf("llm: decode reply: %w", err)
	}
	if strings.TrimSpace(payload.Reply) == "" {
		return "", errors.New("llm: empty reply")
	}
	return payload.Reply, nil
}

func extractionResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "order_extraction",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"items":{"type":"array","items":{
						"type":"object",
						"additionalProperties":false,
						"properties":{
							"name":{"type":"string"},
							"quantity":{"type":"integer"}
						},
						"required":["name","quantity"]
					}},
					"mode":{"type":"string"},
					"payment":{"type":"string"},
					"customer_name":{"type":"string"},
					"street":{"type":"string"},
					"number":{"type":"string"},
					"neighborhood":{"type":"string"},
					"city":{"type":"string"},
					"notes":{"type":"string"}
				},
				"required":["items","mode","payment","customer_name","street","number","neighborhood","city","notes"]
			}`),
		},
	}
}

type extractionPayload struct {
	Items []struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	Mode         string `json:"mode"`
	Payment      string `json:"payment"`
	CustomerName string `json:"customer_name"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	Notes        string `json:"notes"`
}

const extractSystemPrompt = `You extract structured order data from a customer message to a restaurant
WhatsApp bot, in Brazilian Portuguese or English. Fill only what the message states; leave every other
field as an empty string and items as an empty array. mode is DELIVERY or TAKEOUT. payment is PIX, CARD
or CASH. Never guess items that are not mentioned.`

// ExtractUpdate asks the model for a structured read of the message. Output is
// sanitized field by field; anything outside the allowed vocabulary is dropped
// rather than passed through.
func (c *Client) ExtractUpdate(ctx context.Context, model, text string) (domain.PartialUpdate, error) {
	content, err := c.chat(ctx, model, []ChatMessage{
		{Role: "system", Content: extractSystemPrompt},
		{Role: "user", Content: text},
	}, extractionResponseFormat())
	if err != nil {
		return domain.PartialUpdate{}, err
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return domain.PartialUpdate{}, fmt.Errorf("llm: decode extraction: %w", err)
	}

	var upd domain.PartialUpdate
	for _, it := range payload.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		upd.Items = append(upd.Items, domain.ItemUpdate{Name: name, Quantity: qty})
	}
	switch mode := domain.Mode(strings.ToUpper(strings.TrimSpace(payload.Mode))); mode {
	case domain.ModeDelivery, domain.ModeTakeout:
		upd.Mode = mode
	}
	if pay := strings.ToUpper(strings.TrimSpace(payload.Payment)); domain.ValidPayment(pay) {
		upd.Payment = pay
	}
	upd.CustomerName = strings.TrimSpace(payload.CustomerName)
	upd.Notes = strings.TrimSpace(payload.Notes)
	upd.Address = domain.AddressUpdate{
		Street:       strings.TrimSpace(payload.Street),
		Number:       strings.TrimSpace(payload.Number),
		Neighborhood: strings.TrimSpace(payload.Neighborhood),
		City:         strings.TrimSpace(payload.City),
	}
	return upd, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("llm: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("llm: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("llm: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("llm: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("llm: API token is empty")
	}
	return tp.Token, nil
}
