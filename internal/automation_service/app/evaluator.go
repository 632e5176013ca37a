package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapdesk/golang_services/internal/automation_service/domain"
)

// Evaluator computes the open/closed business status from the persisted
// weekly hours and date exceptions.
type Evaluator struct {
	hours  domain.HoursRepository
	logger *slog.Logger
}

func NewEvaluator(hours domain.HoursRepository, logger *slog.Logger) *Evaluator {
	return &Evaluator{hours: hours, logger: logger}
}

// Status evaluates the business status at the given instant.
func (e *Evaluator) Status(ctx context.Context, now time.Time) (domain.BusinessStatus, error) {
	exc, err := e.hours.ExceptionForDate(ctx, now)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.BusinessStatus{}, fmt.Errorf("load date exception: %w", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		exc = nil
	}

	weekly, err := e.hours.WeeklyHours(ctx)
	if err != nil {
		return domain.BusinessStatus{}, fmt.Errorf("load weekly hours: %w", err)
	}

	return StatusAt(now, weekly, exc), nil
}

// StatusAt is the pure evaluation: date exceptions take precedence over the
// weekly schedule.
func StatusAt(now time.Time, weekly []domain.WeeklyHours, exc *domain.DateException) domain.BusinessStatus {
	if exc != nil {
		if exc.Closed {
			return domain.BusinessStatus{IsOpen: false, Reason: "date_exception_closed"}
		}
		if exc.OpenTime.Valid && exc.CloseTime.Valid {
			if withinWindow(now, exc.OpenTime.String, exc.CloseTime.String) {
				return domain.BusinessStatus{IsOpen: true, Reason: "date_exception_hours"}
			}
			return domain.BusinessStatus{IsOpen: false, Reason: "date_exception_hours"}
		}
		// Exception without times: treated as open all day for that date.
		return domain.BusinessStatus{IsOpen: true, Reason: "date_exception_open"}
	}

	for _, wh := range weekly {
		if wh.Weekday != now.Weekday() {
			continue
		}
		if wh.OpenTime == wh.CloseTime {
			return domain.BusinessStatus{IsOpen: false, Reason: "closed_all_day"}
		}
		if withinWindow(now, wh.OpenTime, wh.CloseTime) {
			return domain.BusinessStatus{IsOpen: true, Reason: "weekly_schedule"}
		}
		return domain.BusinessStatus{IsOpen: false, Reason: "outside_weekly_hours"}
	}

	return domain.BusinessStatus{IsOpen: false, Reason: "no_schedule_for_weekday"}
}

// withinWindow compares wall-clock minutes. A close time earlier than the
// open time spans midnight.
func withinWindow(now time.Time, open, close string) bool {
	openMin, okOpen := parseWallClock(open)
	closeMin, okClose := parseWallClock(close)
	if !okOpen || !okClose {
		return false
	}
	nowMin := now.Hour()*60 + now.Minute()

	if closeMin < openMin {
		return nowMin >= openMin || nowMin < closeMin
	}
	return nowMin >= openMin && nowMin < closeMin
}

func parseWallClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
