package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const MaxRequestBodySize = 1 << 20 // 1 MB

// IngestModeInline processes payloads synchronously; IngestModeQueue persists
// them to the durable queue for the consumer.
const (
	IngestModeInline = "inline"
	IngestModeQueue  = "queue"
)

// PayloadProcessor is the low-latency path: the same entry point the queue
// consumer calls.
type PayloadProcessor interface {
	ProcessWebhookPayload(ctx context.Context, payload []byte) error
}

// QueueEnqueuer is the durable path.
type QueueEnqueuer interface {
	Enqueue(ctx context.Context, payload []byte) (uuid.UUID, error)
}

// PendingNotifier nudges consumers to tick immediately after an enqueue.
type PendingNotifier interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

type WebhookHandler struct {
	processor   PayloadProcessor
	queue       QueueEnqueuer
	notifier    PendingNotifier
	verifyToken string
	ingestMode  string
	logger      *slog.Logger
}

func NewWebhookHandler(
	processor PayloadProcessor,
	queue QueueEnqueuer,
	notifier PendingNotifier,
	verifyToken string,
	ingestMode string,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		processor:   processor,
		queue:       queue,
		notifier:    notifier,
		verifyToken: verifyToken,
		ingestMode:  ingestMode,
		logger:      logger.With("component", "webhook_handler"),
	}
}

// HandleVerify answers the provider's subscription handshake.
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	h.logger.WarnContext(r.Context(), "Webhook verification rejected", "mode", q.Get("hub.mode"))
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleEvent receives provider callbacks. It always acknowledges 200
// regardless of internal outcome, so the provider never enters a retry storm;
// internal failures surface only through the queue item's error state.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook body", "error", err)
		h.acknowledge(w)
		return
	}

	logger.InfoContext(ctx, "Received provider webhook",
		"remote_addr", r.RemoteAddr, "payload_size", len(payload), "ingest_mode", h.ingestMode)

	if h.ingestMode == IngestModeQueue && h.queue != nil {
		id, err := h.queue.Enqueue(ctx, payload)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to enqueue webhook payload, falling back to inline processing", "error", err)
			h.processInline(ctx, logger, payload)
		} else {
			logger.InfoContext(ctx, "Webhook payload enqueued", "item_id", id)
			if h.notifier != nil {
				if err := h.notifier.Publish(ctx, "webhook.queue.pending", []byte(id.String())); err != nil {
					logger.WarnContext(ctx, "Failed to publish pending notification", "error", err)
				}
			}
		}
	} else {
		h.processInline(ctx, logger, payload)
	}

	h.acknowledge(w)
}

func (h *WebhookHandler) processInline(ctx context.Context, logger *slog.Logger, payload []byte) {
	if err := h.processor.ProcessWebhookPayload(ctx, payload); err != nil {
		logger.ErrorContext(ctx, "Inline webhook processing failed", "error", err)
	}
}

func (h *WebhookHandler) acknowledge(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("EVENT_RECEIVED"))
}
