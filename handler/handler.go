// Package handler exposes the HTTP surface: the WhatsApp webhook that feeds
// the message pipeline and the health endpoint.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"order-agent/internal/pipeline"
	"order-agent/internal/tenant"
)

// maxBodyBytes bounds the webhook request body.
const maxBodyBytes = 64 * 1024

// Registry resolves tenant configuration for inbound routing.
type Registry interface {
	Get(id string) (tenant.Tenant, bool)
}

// Deduper drops redelivered webhook messages.
type Deduper interface {
	Seen(id string) bool
}

// Enqueuer feeds accepted messages into the grouping buffer.
type Enqueuer interface {
	Enqueue(msg pipeline.Inbound, window time.Duration)
}

// Handler routes webhook deliveries into the pipeline. It acknowledges fast;
// all conversation work happens asynchronously after the debounce window.
type Handler struct {
	registry Registry
	dedupe   Deduper
	buffer   Enqueuer
	log      *slog.Logger
}

// New creates a Handler.
func New(registry Registry, dedupe Deduper, buffer Enqueuer, log *slog.Logger) (*Handler, error) {
	if registry == nil {
		return nil, errors.New("handler: registry must not be nil")
	}
	if dedupe == nil {
		return nil, errors.New("handler: deduper must not be nil")
	}
	if buffer == nil {
		return nil, errors.New("handler: buffer must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{registry: registry, dedupe: dedupe, buffer: buffer, log: log}, nil
}

// Router builds the HTTP mux for the service.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/{tenant}", h.handleWebhook)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return mux
}

// webhookRequest is the gateway's inbound message shape.
type webhookRequest struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	Text      string `json:"text"`
}

type webhookResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	cfg, ok := h.registry.Get(tenantID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown tenant"})
		return
	}

	var req webhookRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	req.From = strings.TrimSpace(req.From)
	if req.From == "" || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "from and text are required"})
		return
	}

	if h.dedupe.Seen(tenantID + "#" + req.MessageID) {
		// redeliveries ack fine; the first copy is already buffered
		writeJSON(w, http.StatusOK, webhookResponse{Status: "duplicate"})
		return
	}

	h.buffer.Enqueue(pipeline.Inbound{
		TenantID:  tenantID,
		Channel:   req.From,
		MessageID: req.MessageID,
		Text:      req.Text,
		At:        time.Now(),
	}, cfg.DebounceWindow())

	h.log.Debug("message accepted", "tenant", tenantID, "channel", req.From)
	writeJSON(w, http.StatusAccepted, webhookResponse{Status: "queued"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, webhookResponse{Status: "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
