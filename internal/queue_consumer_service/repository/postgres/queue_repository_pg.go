package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zapdesk/golang_services/internal/queue_consumer_service/domain"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgQueueRepository struct {
	db     DB
	logger *slog.Logger
}

// NewPgQueueRepository creates the PostgreSQL implementation of QueueRepository.
func NewPgQueueRepository(db DB, logger *slog.Logger) *PgQueueRepository {
	return &PgQueueRepository{db: db, logger: logger}
}

// guardTransition rejects a writeback that would violate the queue item state
// machine before it reaches the database.
func guardTransition(from, to domain.QueueStatus) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("illegal queue status transition: %s -> %s", from, to)
	}
	return nil
}

func (r *PgQueueRepository) Enqueue(ctx context.Context, payload []byte) (uuid.UUID, error) {
	id := uuid.New()
	query := `
		INSERT INTO webhook_queue (id, status, payload, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
	`
	now := time.Now().UTC()
	if _, err := r.db.Exec(ctx, query, id, domain.QueueStatusPending, payload, now); err != nil {
		r.logger.ErrorContext(ctx, "Error enqueueing webhook payload", "error", err, "item_id", id)
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PgQueueRepository) PendingPage(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM webhook_queue
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, domain.QueueStatusPending, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying pending queue items", "error", err)
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Claim performs the atomic pending -> processing transition. The WHERE clause
// on status is what guarantees at-most-one-processor per item: the row-level
// UPDATE only matches while the item is still pending, so the losing instance
// scans no row and observes ErrClaimLost.
func (r *PgQueueRepository) Claim(ctx context.Context, id uuid.UUID, claimedBy string) (*domain.ClaimedItem, error) {
	query := `
		UPDATE webhook_queue
		SET status = $1, attempts = attempts + 1, processing_by = $2,
		    processing_started_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING payload, attempts
	`
	claimed := &domain.ClaimedItem{ID: id}
	err := r.db.QueryRow(ctx, query,
		domain.QueueStatusProcessing, claimedBy, time.Now().UTC(), id, domain.QueueStatusPending,
	).Scan(&claimed.Payload, &claimed.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClaimLost
		}
		r.logger.ErrorContext(ctx, "Error claiming queue item", "error", err, "item_id", id)
		return nil, err
	}
	return claimed, nil
}

// MarkProcessed, MarkRetry and MarkError only ever operate on an item this
// instance holds, so each writeback asserts the processing -> target edge and
// matches the row only while it is still in processing. A stray writeback on a
// row someone else already moved scans nothing and surfaces ErrNotFound.

func (r *PgQueueRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedBy string) error {
	if err := guardTransition(domain.QueueStatusProcessing, domain.QueueStatusProcessed); err != nil {
		return err
	}
	query := `
		UPDATE webhook_queue
		SET status = $1, processed_at = $2, processed_by = $3, last_error = NULL, updated_at = $2
		WHERE id = $4 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, domain.QueueStatusProcessed, time.Now().UTC(), processedBy, id, domain.QueueStatusProcessing)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking queue item processed", "error", err, "item_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgQueueRepository) MarkRetry(ctx context.Context, id uuid.UUID, lastError string) error {
	if err := guardTransition(domain.QueueStatusProcessing, domain.QueueStatusPending); err != nil {
		return err
	}
	query := `
		UPDATE webhook_queue
		SET status = $1, processing_by = NULL, last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, domain.QueueStatusPending, lastError, time.Now().UTC(), id, domain.QueueStatusProcessing)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error reverting queue item to pending", "error", err, "item_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgQueueRepository) MarkError(ctx context.Context, id uuid.UUID, lastError string) error {
	if err := guardTransition(domain.QueueStatusProcessing, domain.QueueStatusError); err != nil {
		return err
	}
	query := `
		UPDATE webhook_queue
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, domain.QueueStatusError, lastError, time.Now().UTC(), id, domain.QueueStatusProcessing)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking queue item as failed", "error", err, "item_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
