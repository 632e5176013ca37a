package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapdesk/golang_services/internal/automation_service/domain"
)

type PgSettingsRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgSettingsRepository(db *pgxpool.Pool, logger *slog.Logger) *PgSettingsRepository {
	return &PgSettingsRepository{db: db, logger: logger}
}

// Get reads the singleton settings row. A missing row means automations are
// disabled rather than an error.
func (r *PgSettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	query := `
		SELECT automation_enabled, COALESCE(welcome_message, ''), COALESCE(out_of_hours_message, '')
		FROM settings
		LIMIT 1
	`
	settings := &domain.Settings{}
	err := r.db.QueryRow(ctx, query).Scan(
		&settings.AutomationEnabled, &settings.WelcomeMessage, &settings.OutOfHoursMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.Settings{}, nil
		}
		r.logger.ErrorContext(ctx, "Error reading settings", "error", err)
		return nil, err
	}
	return settings, nil
}
