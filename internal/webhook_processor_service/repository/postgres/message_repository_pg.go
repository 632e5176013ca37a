package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapdesk/golang_services/internal/webhook_processor_service/domain"
)

type PgMessageRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgMessageRepository(db *pgxpool.Pool, logger *slog.Logger) *PgMessageRepository {
	return &PgMessageRepository{db: db, logger: logger}
}

func (r *PgMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (
			id, ticket_id, sender, content, message_type, media_url,
			whatsapp_message_id, whatsapp_message, reply_to_id,
			message_status, message_status_updated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	var status any
	if msg.MessageStatus != domain.DeliveryStatusNone {
		status = string(msg.MessageStatus)
	}

	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.TicketID, msg.Sender, msg.Content, msg.MessageType, msg.MediaURL,
		msg.WhatsAppMessageID, msg.WhatsAppMessage, msg.ReplyToID,
		status, msg.StatusUpdatedAt, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateMessage
		}
		r.logger.ErrorContext(ctx, "Error inserting message",
			"error", err, "message_id", msg.ID, "ticket_id", msg.TicketID)
		return err
	}
	return nil
}

func (r *PgMessageRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.Message, error) {
	query := `
		SELECT id, ticket_id, sender, content, message_type, media_url,
		       whatsapp_message_id, whatsapp_message, reply_to_id,
		       COALESCE(message_status, ''), message_status_updated_at, created_at, updated_at
		FROM messages
		WHERE whatsapp_message_id = $1
	`
	msg := &domain.Message{}
	err := r.db.QueryRow(ctx, query, providerMessageID).Scan(
		&msg.ID, &msg.TicketID, &msg.Sender, &msg.Content, &msg.MessageType, &msg.MediaURL,
		&msg.WhatsAppMessageID, &msg.WhatsAppMessage, &msg.ReplyToID,
		&msg.MessageStatus, &msg.StatusUpdatedAt, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting message by provider id",
			"error", err, "provider_message_id", providerMessageID)
		return nil, err
	}
	return msg, nil
}

func (r *PgMessageRepository) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, at time.Time) error {
	query := `
		UPDATE messages
		SET message_status = $1, message_status_updated_at = $2, updated_at = $3
		WHERE id = $4
	`
	tag, err := r.db.Exec(ctx, query, string(status), at, time.Now().UTC(), id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating message delivery status",
			"error", err, "message_id", id, "status", status)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgMessageRepository) BackfillRead(ctx context.Context, ticketID uuid.UUID) (int64, error) {
	query := `
		UPDATE messages
		SET message_status = $1, message_status_updated_at = $2, updated_at = $2
		WHERE ticket_id = $3 AND sender = $4 AND message_status IN ($5, $6)
	`
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, query,
		string(domain.DeliveryStatusRead), now, ticketID, domain.SenderAgent,
		string(domain.DeliveryStatusSent), string(domain.DeliveryStatusDelivered),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error backfilling read receipts", "error", err, "ticket_id", ticketID)
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgMessageRepository) HasAgentOrSystemMessage(ctx context.Context, ticketID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE ticket_id = $1 AND sender IN ($2, $3)
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, ticketID, domain.SenderAgent, domain.SenderSystem).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error checking for non-client messages", "error", err, "ticket_id", ticketID)
		return false, err
	}
	return exists, nil
}
