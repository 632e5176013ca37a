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

const (
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
)

type PgTicketRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgTicketRepository(db *pgxpool.Pool, logger *slog.Logger) *PgTicketRepository {
	return &PgTicketRepository{db: db, logger: logger}
}

const openTicketQuery = `
	SELECT id, phone, status, seller_id, contact_name, created_at, updated_at
	FROM tickets
	WHERE phone = $1 AND status IN ($2, $3, $4)
	ORDER BY created_at DESC
	LIMIT 1
`

// ResolveOpenTicket serializes concurrent webhook deliveries for the same
// phone through a serializable transaction; the partial unique index on open
// tickets backs it up. A loser of the race falls back to a plain re-read
// (single-writer-wins) instead of retrying the write.
func (r *PgTicketRepository) ResolveOpenTicket(ctx context.Context, phone string, contactName string) (*domain.TicketResolution, error) {
	resolution, err := r.resolveInTx(ctx, phone, contactName)
	if err == nil {
		return resolution, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgUniqueViolation) {
		r.logger.WarnContext(ctx, "Ticket resolution conflict, falling back to re-read",
			"phone", phone, "pg_code", pgErr.Code)
		ticket, rereadErr := r.findOpen(ctx, r.db, phone)
		if rereadErr != nil {
			return nil, rereadErr
		}
		return &domain.TicketResolution{Ticket: ticket}, nil
	}
	return nil, err
}

func (r *PgTicketRepository) resolveInTx(ctx context.Context, phone string, contactName string) (*domain.TicketResolution, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ticket, err := r.findOpen(ctx, tx, phone)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	resolution := &domain.TicketResolution{}
	now := time.Now().UTC()

	if ticket != nil {
		if contactName != "" && (!ticket.ContactName.Valid || ticket.ContactName.String != contactName) {
			if _, err := tx.Exec(ctx,
				`UPDATE tickets SET contact_name = $1, updated_at = $2 WHERE id = $3`,
				contactName, now, ticket.ID,
			); err != nil {
				return nil, err
			}
			ticket.ContactName.String, ticket.ContactName.Valid = contactName, true
		}
		resolution.Ticket = ticket
	} else {
		// Whether the preceding ticket was terminal drives the reopened note.
		var hadPrevious bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tickets WHERE phone = $1)`, phone,
		).Scan(&hadPrevious)
		if err != nil {
			return nil, err
		}

		created := &domain.Ticket{
			ID:        uuid.New(),
			Phone:     phone,
			Status:    domain.TicketStatusPendente,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if contactName != "" {
			created.ContactName.String, created.ContactName.Valid = contactName, true
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO tickets (id, phone, status, contact_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
		`, created.ID, created.Phone, created.Status, created.ContactName, now); err != nil {
			return nil, err
		}

		resolution.Ticket = created
		resolution.Created = true
		resolution.Reopened = hadPrevious
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if resolution.Created {
		r.logger.InfoContext(ctx, "Ticket created", "ticket_id", resolution.Ticket.ID,
			"phone", phone, "reopened", resolution.Reopened)
	}
	return resolution, nil
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PgTicketRepository) findOpen(ctx context.Context, q queryer, phone string) (*domain.Ticket, error) {
	ticket := &domain.Ticket{}
	err := q.QueryRow(ctx, openTicketQuery, phone,
		domain.TicketStatusPendente, domain.TicketStatusAguardando, domain.TicketStatusEmAtendimento,
	).Scan(
		&ticket.ID, &ticket.Phone, &ticket.Status, &ticket.SellerID,
		&ticket.ContactName, &ticket.CreatedAt, &ticket.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error finding open ticket", "error", err, "phone", phone)
		return nil, err
	}
	return ticket, nil
}

func (r *PgTicketRepository) Touch(ctx context.Context, ticketID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), ticketID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error touching ticket", "error", err, "ticket_id", ticketID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
