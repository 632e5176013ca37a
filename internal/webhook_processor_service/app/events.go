package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NATS subjects carrying internal events for real-time UI consumers.
const (
	MessageEventSubject = "inbox.events.message"
	TicketEventSubject  = "inbox.events.ticket"
)

// EventPublisher is the narrow broker capability the processor depends on.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// MessageEvent notifies real-time consumers about a new message or a
// delivery-status change on an existing one.
type MessageEvent struct {
	TicketID  uuid.UUID `json:"ticket_id"`
	Phone     string    `json:"phone"`
	MessageID uuid.UUID `json:"message_id"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketEvent notifies real-time consumers about ticket lifecycle changes.
type TicketEvent struct {
	TicketID  uuid.UUID `json:"ticket_id"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// publishEvent is fire-and-forget: real-time delivery is opportunistic and a
// broker hiccup never fails ingestion.
func publishEvent(ctx context.Context, pub EventPublisher, logger *slog.Logger, subject string, event any) {
	if pub == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal internal event", "subject", subject, "error", err)
		return
	}
	if err := pub.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish internal event", "subject", subject, "error", err)
	}
}
