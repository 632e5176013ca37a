package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a ticket or message does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidPayload marks structurally-invalid webhook payloads. This is the
// permanent failure class: the queue consumer never retries it.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// ErrDuplicateMessage is returned by InsertMessage when the provider message
// id already exists (idempotency key collision under a race).
var ErrDuplicateMessage = errors.New("duplicate provider message id")

// TicketRepository persists tickets.
type TicketRepository interface {
	// ResolveOpenTicket finds the open ticket for phone or creates one,
	// serializing concurrent webhook deliveries for the same phone. When the
	// carried contact name differs from the stored one, the name is updated.
	// On transaction conflict a plain re-read is used as fallback
	// (single-writer-wins, the loser re-reads).
	ResolveOpenTicket(ctx context.Context, phone string, contactName string) (*TicketResolution, error)
	// Touch bumps the ticket's updated_at, used on duplicate deliveries.
	Touch(ctx context.Context, ticketID uuid.UUID) error
}

// MessageRepository persists ticket timeline entries.
type MessageRepository interface {
	Insert(ctx context.Context, msg *Message) error
	// GetByProviderMessageID looks a message up by its WhatsApp message id.
	// Returns ErrNotFound when absent.
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*Message, error)
	// UpdateDeliveryStatus overwrites message_status and its timestamp.
	UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status DeliveryStatus, at time.Time) error
	// BackfillRead promotes the ticket's agent messages still in
	// sent/delivered to read; returns how many rows were promoted.
	BackfillRead(ctx context.Context, ticketID uuid.UUID) (int64, error)
	// HasAgentOrSystemMessage reports whether the ticket already carries any
	// non-client message; used to suppress the welcome auto-reply.
	HasAgentOrSystemMessage(ctx context.Context, ticketID uuid.UUID) (bool, error)
}

// ContactRepository persists best-effort contact profile data.
type ContactRepository interface {
	UpsertProfile(ctx context.Context, phone string, name string, pictureURL string) error
}
