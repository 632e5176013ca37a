package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a customer conversation session.
// Status names are kept in Portuguese as they appear throughout the product.
type TicketStatus string

const (
	TicketStatusPendente      TicketStatus = "pendente"
	TicketStatusAguardando    TicketStatus = "aguardando"
	TicketStatusEmAtendimento TicketStatus = "em_atendimento"
	TicketStatusResolvido     TicketStatus = "resolvido"
	TicketStatusEncerrado     TicketStatus = "encerrado"
)

// IsTerminal reports whether the status closes the ticket. For a given phone
// at most one ticket may be in a non-terminal status at a time.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolvido || s == TicketStatusEncerrado
}

// Ticket is a customer conversation session keyed by the canonical phone.
type Ticket struct {
	ID          uuid.UUID      `json:"id"`
	Phone       string         `json:"phone"`
	Status      TicketStatus   `json:"status"`
	SellerID    uuid.NullUUID  `json:"seller_id,omitempty"`
	ContactName sql.NullString `json:"contact_name,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TicketResolution is the outcome of resolving the open ticket for a phone
// during inbound message handling.
type TicketResolution struct {
	Ticket *Ticket
	// Created is true when no open ticket existed and a new one was inserted.
	Created bool
	// Reopened is true when the new ticket follows a terminal ticket for the
	// same phone; it drives the "conversation reopened" system note.
	Reopened bool
}
