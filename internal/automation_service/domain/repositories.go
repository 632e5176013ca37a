package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// HoursRepository reads the persisted schedule.
type HoursRepository interface {
	WeeklyHours(ctx context.Context) ([]WeeklyHours, error)
	// ExceptionForDate returns the override for the given calendar date, or
	// ErrNotFound when none exists.
	ExceptionForDate(ctx context.Context, date time.Time) (*DateException, error)
}

// SettingsRepository reads the automation settings.
type SettingsRepository interface {
	Get(ctx context.Context) (*Settings, error)
}

// BlacklistRepository checks whether a phone is excluded from automations.
type BlacklistRepository interface {
	IsBlacklisted(ctx context.Context, phone string) (bool, error)
}

// OutOfHoursLogRepository tracks when the out-of-hours auto-reply was last
// sent per phone. Tracking is per phone, not per message, so bursts within
// the cooldown window trigger at most one reply.
type OutOfHoursLogRepository interface {
	// LastSentAt returns the last send time for phone; found is false when
	// the phone never received the auto-reply.
	LastSentAt(ctx context.Context, phone string) (at time.Time, found bool, err error)
	// UpsertLastSent records that the auto-reply was sent to phone at the
	// given time.
	UpsertLastSent(ctx context.Context, phone string, at time.Time) error
}
