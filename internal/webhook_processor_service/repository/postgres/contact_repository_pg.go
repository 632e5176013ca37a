package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PgContactRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgContactRepository(db *pgxpool.Pool, logger *slog.Logger) *PgContactRepository {
	return &PgContactRepository{db: db, logger: logger}
}

// UpsertProfile stores the latest known display name and profile-picture URL
// for a phone. Empty values never overwrite existing ones.
func (r *PgContactRepository) UpsertProfile(ctx context.Context, phone string, name string, pictureURL string) error {
	query := `
		INSERT INTO contacts (phone, name, profile_picture_url, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
		ON CONFLICT (phone) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name),
			profile_picture_url = COALESCE(NULLIF(EXCLUDED.profile_picture_url, ''), contacts.profile_picture_url),
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query, phone, name, pictureURL, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error upserting contact profile", "error", err, "phone", phone)
		return err
	}
	return nil
}
