package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgOutOfHoursLogRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgOutOfHoursLogRepository(db *pgxpool.Pool, logger *slog.Logger) *PgOutOfHoursLogRepository {
	return &PgOutOfHoursLogRepository{db: db, logger: logger}
}

func (r *PgOutOfHoursLogRepository) LastSentAt(ctx context.Context, phone string) (time.Time, bool, error) {
	var at time.Time
	err := r.db.QueryRow(ctx,
		`SELECT last_sent_at FROM out_of_hours_log WHERE phone = $1`, phone,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		r.logger.ErrorContext(ctx, "Error reading out-of-hours log", "error", err, "phone", phone)
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (r *PgOutOfHoursLogRepository) UpsertLastSent(ctx context.Context, phone string, at time.Time) error {
	query := `
		INSERT INTO out_of_hours_log (phone, last_sent_at)
		VALUES ($1, $2)
		ON CONFLICT (phone) DO UPDATE SET last_sent_at = EXCLUDED.last_sent_at
	`
	if _, err := r.db.Exec(ctx, query, phone, at); err != nil {
		r.logger.ErrorContext(ctx, "Error upserting out-of-hours log", "error", err, "phone", phone)
		return err
	}
	return nil
}
