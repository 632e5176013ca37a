package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapdesk/golang_services/internal/automation_service/domain"
)

type PgHoursRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgHoursRepository(db *pgxpool.Pool, logger *slog.Logger) *PgHoursRepository {
	return &PgHoursRepository{db: db, logger: logger}
}

func (r *PgHoursRepository) WeeklyHours(ctx context.Context) ([]domain.WeeklyHours, error) {
	query := `
		SELECT weekday, open_time, close_time
		FROM business_hours
		ORDER BY weekday
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying business hours", "error", err)
		return nil, err
	}
	defer rows.Close()

	var hours []domain.WeeklyHours
	for rows.Next() {
		var wh domain.WeeklyHours
		var weekday int
		if err := rows.Scan(&weekday, &wh.OpenTime, &wh.CloseTime); err != nil {
			return nil, err
		}
		wh.Weekday = time.Weekday(weekday)
		hours = append(hours, wh)
	}
	return hours, rows.Err()
}

func (r *PgHoursRepository) ExceptionForDate(ctx context.Context, date time.Time) (*domain.DateException, error) {
	query := `
		SELECT date, closed, open_time, close_time, reason
		FROM business_exceptions
		WHERE date = $1
	`
	exc := &domain.DateException{}
	err := r.db.QueryRow(ctx, query, date.Format("2006-01-02")).Scan(
		&exc.Date, &exc.Closed, &exc.OpenTime, &exc.CloseTime, &exc.Reason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error querying business exception", "error", err, "date", date.Format("2006-01-02"))
		return nil, err
	}
	return exc, nil
}
