package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zapdesk/golang_services/internal/webhook_processor_service/domain"
)

// AutomationGate is the automation evaluator capability the processor uses.
type AutomationGate interface {
	OutOfHoursReply(ctx context.Context, phone string, now time.Time) (text string, ok bool, err error)
	RecordOutOfHoursReply(ctx context.Context, phone string, at time.Time) error
	WelcomeReply(ctx context.Context, hasAgentOrSystemMessage bool, now time.Time) (text string, ok bool, err error)
}

// TextSender is the narrow outbound-send capability: auto-replies only.
// Failures are logged, never retried synchronously.
type TextSender interface {
	SendText(ctx context.Context, phone string, body string) (providerMessageID string, err error)
}

// AvatarResolver resolves a profile-picture URL for a phone, best-effort.
type AvatarResolver interface {
	ResolveAvatar(ctx context.Context, phone string) (string, error)
}

// Processor turns one raw provider payload into local ticket/message state
// changes. It is idempotent: both the queue and the direct HTTP path may
// process the same payload.
type Processor struct {
	tickets    domain.TicketRepository
	messages   domain.MessageRepository
	contacts   domain.ContactRepository
	automation AutomationGate
	sender     TextSender
	avatars    AvatarResolver
	events     EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewProcessor creates a Processor. automation, sender, avatars and events
// may each be nil; the corresponding side effects are then skipped.
func NewProcessor(
	tickets domain.TicketRepository,
	messages domain.MessageRepository,
	contacts domain.ContactRepository,
	automation AutomationGate,
	sender TextSender,
	avatars AvatarResolver,
	events EventPublisher,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		tickets:    tickets,
		messages:   messages,
		contacts:   contacts,
		automation: automation,
		sender:     sender,
		avatars:    avatars,
		events:     events,
		logger:     logger.With("component", "payload_processor"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ProcessWebhookPayload applies one provider payload. A structurally-invalid
// payload returns ErrInvalidPayload (permanent, never retried). Failures of
// individual message/status items are contained: siblings in the same payload
// are still processed, and the per-item errors are joined so the queue path
// can retry the payload as a whole (idempotency makes re-processing safe).
func (p *Processor) ProcessWebhookPayload(ctx context.Context, payload []byte) error {
	extraction, err := ExtractPayload(payload)
	if err != nil {
		payloadsProcessedCounter.WithLabelValues("invalid").Inc()
		return err
	}

	var itemErrs []error

	for _, group := range extraction.MessageGroups {
		for _, msg := range group.Messages {
			if err := p.handleInboundMessage(ctx, group, msg); err != nil {
				messagesProcessedCounter.WithLabelValues("error").Inc()
				p.logger.ErrorContext(ctx, "Failed to handle inbound message",
					"error", err, "provider_message_id", msg.ID, "from", msg.From)
				itemErrs = append(itemErrs, fmt.Errorf("message %s: %w", msg.ID, err))
			}
		}
	}

	for _, group := range extraction.StatusGroups {
		for _, st := range group.Statuses {
			if err := p.handleStatusEvent(ctx, st); err != nil {
				statusEventsCounter.WithLabelValues("error").Inc()
				p.logger.ErrorContext(ctx, "Failed to handle status event",
					"error", err, "provider_message_id", st.ID, "status", st.Status)
				itemErrs = append(itemErrs, fmt.Errorf("status %s: %w", st.ID, err))
			}
		}
	}

	if len(itemErrs) > 0 {
		payloadsProcessedCounter.WithLabelValues("partial_failure").Inc()
		return errors.Join(itemErrs...)
	}
	payloadsProcessedCounter.WithLabelValues("success").Inc()
	return nil
}

func (p *Processor) handleInboundMessage(ctx context.Context, group domain.ValueGroup, msg domain.InboundMessage) error {
	phone := NormalizePhone(msg.From)
	if phone == "" {
		messagesProcessedCounter.WithLabelValues("skipped").Inc()
		p.logger.WarnContext(ctx, "Skipping message with unparseable sender phone",
			"provider_message_id", msg.ID, "from", msg.From)
		return nil
	}

	contactName, avatarURL := contactOf(group, phone)
	msgType, content, mediaRef := ClassifyMessage(msg)

	// Idempotency: a second delivery of the same provider message id only
	// refreshes the ticket's updated_at.
	if existing, err := p.messages.GetByProviderMessageID(ctx, msg.ID); err == nil {
		messagesProcessedCounter.WithLabelValues("duplicate").Inc()
		p.logger.InfoContext(ctx, "Duplicate inbound message, touching ticket",
			"provider_message_id", msg.ID, "ticket_id", existing.TicketID)
		return p.tickets.Touch(ctx, existing.TicketID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("dedup lookup: %w", err)
	}

	resolution, err := p.tickets.ResolveOpenTicket(ctx, phone, contactName)
	if err != nil {
		return fmt.Errorf("resolve ticket: %w", err)
	}
	ticket := resolution.Ticket

	p.upsertContactProfile(ctx, phone, contactName, avatarURL)

	message := &domain.Message{
		ID:          uuid.New(),
		TicketID:    ticket.ID,
		Sender:      domain.SenderClient,
		Content:     content,
		MessageType: msgType,
		ReplyToID:   p.resolveReplyTarget(ctx, msg),
		CreatedAt:   p.now(),
		UpdatedAt:   p.now(),
	}
	if mediaRef != "" {
		message.MediaURL.String, message.MediaURL.Valid = mediaRef, true
	}
	message.WhatsAppMessageID.String, message.WhatsAppMessageID.Valid = msg.ID, true
	if envelope, err := json.Marshal(msg); err == nil {
		message.WhatsAppMessage = envelope
	}

	if err := p.messages.Insert(ctx, message); err != nil {
		if errors.Is(err, domain.ErrDuplicateMessage) {
			// Lost an insert race with a concurrent delivery of the same event.
			messagesProcessedCounter.WithLabelValues("duplicate").Inc()
			return p.tickets.Touch(ctx, ticket.ID)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	messagesProcessedCounter.WithLabelValues("created").Inc()

	// Inbound messages on an existing ticket bump its updated_at so inbox
	// recency ordering tracks the latest activity.
	if !resolution.Created {
		if err := p.tickets.Touch(ctx, ticket.ID); err != nil {
			p.logger.WarnContext(ctx, "Failed to bump ticket recency", "ticket_id", ticket.ID, "error", err)
		}
	}

	if resolution.Reopened {
		p.insertSystemNote(ctx, ticket, "Novo atendimento iniciado para este contato.")
	}

	p.runAutomations(ctx, ticket)
	p.backfillReadReceipts(ctx, ticket.ID)

	publishEvent(ctx, p.events, p.logger, MessageEventSubject, MessageEvent{
		TicketID:  ticket.ID,
		Phone:     phone,
		MessageID: message.ID,
		Timestamp: p.now(),
	})
	if resolution.Created {
		publishEvent(ctx, p.events, p.logger, TicketEventSubject, TicketEvent{
			TicketID:  ticket.ID,
			Phone:     phone,
			Status:    string(ticket.Status),
			Timestamp: p.now(),
		})
	}
	return nil
}

// handleStatusEvent applies the monotonic status promotion rule. Status
// events only apply to agent-sent messages.
func (p *Processor) handleStatusEvent(ctx context.Context, st domain.StatusEvent) error {
	incoming, ok := domain.ParseDeliveryStatus(st.Status)
	if !ok {
		statusEventsCounter.WithLabelValues("ignored").Inc()
		p.logger.WarnContext(ctx, "Skipping status event with unknown status",
			"provider_message_id", st.ID, "status", st.Status)
		return nil
	}

	message, err := p.messages.GetByProviderMessageID(ctx, st.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			statusEventsCounter.WithLabelValues("unknown_message").Inc()
			p.logger.DebugContext(ctx, "Status event for unknown message, ignoring",
				"provider_message_id", st.ID, "status", st.Status)
			return nil
		}
		return fmt.Errorf("status lookup: %w", err)
	}
	if message.Sender != domain.SenderAgent {
		statusEventsCounter.WithLabelValues("ignored").Inc()
		return nil
	}

	if !domain.ShouldOverwrite(message.MessageStatus, incoming) {
		statusEventsCounter.WithLabelValues("ignored").Inc()
		p.logger.DebugContext(ctx, "Stale status event ignored",
			"provider_message_id", st.ID, "current", message.MessageStatus, "incoming", incoming)
		return nil
	}

	at := st.EventTime(p.now())
	if err := p.messages.UpdateDeliveryStatus(ctx, message.ID, incoming, at); err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	statusEventsCounter.WithLabelValues("promoted").Inc()

	publishEvent(ctx, p.events, p.logger, MessageEventSubject, MessageEvent{
		TicketID:  message.TicketID,
		MessageID: message.ID,
		Status:    string(incoming),
		Timestamp: at,
	})
	return nil
}

// contactOf picks the display name and profile-picture URL carried alongside
// the message, preferring the contact entry matching the sender. wa_id and
// from may carry different formatting, so both sides are normalized before
// comparison.
func contactOf(group domain.ValueGroup, phone string) (string, string) {
	if len(group.Contacts) == 0 {
		return "", ""
	}
	chosen := group.Contacts[0]
	for _, c := range group.Contacts {
		if NormalizePhone(c.WaID) == phone {
			chosen = c
			break
		}
	}
	return chosen.Profile.Name, chosen.Profile.Picture
}

// upsertContactProfile persists the contact profile, best-effort: failures
// never block message handling.
func (p *Processor) upsertContactProfile(ctx context.Context, phone, name, avatarURL string) {
	if p.contacts == nil {
		return
	}
	if avatarURL == "" && p.avatars != nil {
		resolved, err := p.avatars.ResolveAvatar(ctx, phone)
		if err != nil {
			p.logger.DebugContext(ctx, "Avatar resolution failed", "phone", phone, "error", err)
		} else {
			avatarURL = resolved
		}
	}
	if name == "" && avatarURL == "" {
		return
	}
	if err := p.contacts.UpsertProfile(ctx, phone, name, avatarURL); err != nil {
		p.logger.WarnContext(ctx, "Contact profile upsert failed", "phone", phone, "error", err)
	}
}

// resolveReplyTarget maps the provider's quoted-message reference onto a
// local message id. Unresolved references quietly yield null.
func (p *Processor) resolveReplyTarget(ctx context.Context, msg domain.InboundMessage) uuid.NullUUID {
	if msg.Context == nil || msg.Context.ID == "" {
		return uuid.NullUUID{}
	}
	target, err := p.messages.GetByProviderMessageID(ctx, msg.Context.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.logger.WarnContext(ctx, "Reply target lookup failed", "context_id", msg.Context.ID, "error", err)
		}
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: target.ID, Valid: true}
}

// runAutomations evaluates the auto-replies after the inbound message row
// committed. The out-of-hours reply runs first; since it inserts a system
// message, it also permanently suppresses the welcome for the ticket.
func (p *Processor) runAutomations(ctx context.Context, ticket *domain.Ticket) {
	if p.automation == nil {
		return
	}
	now := p.now()

	if text, ok, err := p.automation.OutOfHoursReply(ctx, ticket.Phone, now); err != nil {
		p.logger.ErrorContext(ctx, "Out-of-hours evaluation failed", "ticket_id", ticket.ID, "error", err)
	} else if ok {
		p.sendAutoReply(ctx, ticket, text, "out_of_hours")
		if err := p.automation.RecordOutOfHoursReply(ctx, ticket.Phone, now); err != nil {
			p.logger.WarnContext(ctx, "Failed to record out-of-hours reply", "phone", ticket.Phone, "error", err)
		}
	}

	hasNonClient, err := p.messages.HasAgentOrSystemMessage(ctx, ticket.ID)
	if err != nil {
		p.logger.ErrorContext(ctx, "Welcome suppression lookup failed", "ticket_id", ticket.ID, "error", err)
		return
	}
	if text, ok, err := p.automation.WelcomeReply(ctx, hasNonClient, now); err != nil {
		p.logger.ErrorContext(ctx, "Welcome evaluation failed", "ticket_id", ticket.ID, "error", err)
	} else if ok {
		p.sendAutoReply(ctx, ticket, text, "welcome")
	}
}

// sendAutoReply sends the reply fire-and-forget and records it on the
// timeline as a system message. A provider send failure still records the
// timeline entry so operators see the attempt.
func (p *Processor) sendAutoReply(ctx context.Context, ticket *domain.Ticket, text string, kind string) {
	var providerID string
	if p.sender != nil {
		id, err := p.sender.SendText(ctx, ticket.Phone, text)
		if err != nil {
			p.logger.ErrorContext(ctx, "Auto-reply send failed", "kind", kind, "phone", ticket.Phone, "error", err)
		} else {
			providerID = id
		}
	}

	message := &domain.Message{
		ID:          uuid.New(),
		TicketID:    ticket.ID,
		Sender:      domain.SenderSystem,
		Content:     text,
		MessageType: domain.MessageTypeText,
		CreatedAt:   p.now(),
		UpdatedAt:   p.now(),
	}
	if providerID != "" {
		message.WhatsAppMessageID.String, message.WhatsAppMessageID.Valid = providerID, true
	}
	if err := p.messages.Insert(ctx, message); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record auto-reply on timeline", "kind", kind, "ticket_id", ticket.ID, "error", err)
		return
	}
	autoRepliesCounter.WithLabelValues(kind).Inc()

	publishEvent(ctx, p.events, p.logger, MessageEventSubject, MessageEvent{
		TicketID:  ticket.ID,
		Phone:     ticket.Phone,
		MessageID: message.ID,
		Timestamp: p.now(),
	})
}

func (p *Processor) insertSystemNote(ctx context.Context, ticket *domain.Ticket, text string) {
	note := &domain.Message{
		ID:          uuid.New(),
		TicketID:    ticket.ID,
		Sender:      domain.SenderSystem,
		Content:     text,
		MessageType: domain.MessageTypeText,
		CreatedAt:   p.now(),
		UpdatedAt:   p.now(),
	}
	if err := p.messages.Insert(ctx, note); err != nil {
		p.logger.WarnContext(ctx, "Failed to insert system note", "ticket_id", ticket.ID, "error", err)
	}
}

// backfillReadReceipts promotes the ticket's outstanding agent messages to
// read when the client sends anything. This is a documented best-effort
// compensator for providers that do not reliably deliver read receipts, not
// a correctness guarantee.
func (p *Processor) backfillReadReceipts(ctx context.Context, ticketID uuid.UUID) {
	n, err := p.messages.BackfillRead(ctx, ticketID)
	if err != nil {
		p.logger.WarnContext(ctx, "Read-receipt backfill failed", "ticket_id", ticketID, "error", err)
		return
	}
	if n > 0 {
		p.logger.DebugContext(ctx, "Read-receipt backfill promoted messages", "ticket_id", ticketID, "count", n)
	}
}
