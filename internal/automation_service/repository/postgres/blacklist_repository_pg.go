package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PgBlacklistRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgBlacklistRepository(db *pgxpool.Pool, logger *slog.Logger) *PgBlacklistRepository {
	return &PgBlacklistRepository{db: db, logger: logger}
}

func (r *PgBlacklistRepository) IsBlacklisted(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blacklist WHERE phone = $1)`, phone,
	).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error checking blacklist", "error", err, "phone", phone)
		return false, err
	}
	return exists, nil
}
