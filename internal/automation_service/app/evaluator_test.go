package app

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zapdesk/golang_services/internal/automation_service/domain"
)

var weekdaySchedule = []domain.WeeklyHours{
	{Weekday: time.Monday, OpenTime: "09:00", CloseTime: "18:00"},
	{Weekday: time.Tuesday, OpenTime: "09:00", CloseTime: "18:00"},
	{Weekday: time.Friday, OpenTime: "22:00", CloseTime: "02:00"}, // spans midnight
	{Weekday: time.Sunday, OpenTime: "10:00", CloseTime: "10:00"}, // closed all day
}

func at(weekday time.Weekday, hour, minute int) time.Time {
	// 2024-06-03 is a Monday.
	base := time.Date(2024, 6, 3, hour, minute, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(weekday-time.Monday+7)%7)
}

func TestStatusAt_WeeklySchedule(t *testing.T) {
	testCases := []struct {
		name           string
		now            time.Time
		expectedOpen   bool
		expectedReason string
	}{
		{"inside monday hours", at(time.Monday, 10, 0), true, "weekly_schedule"},
		{"at opening minute", at(time.Monday, 9, 0), true, "weekly_schedule"},
		{"at closing minute", at(time.Monday, 18, 0), false, "outside_weekly_hours"},
		{"before opening", at(time.Monday, 8, 59), false, "outside_weekly_hours"},
		{"weekday with no schedule", at(time.Wednesday, 12, 0), false, "no_schedule_for_weekday"},
		{"open equals close means closed", at(time.Sunday, 10, 0), false, "closed_all_day"},
		{"midnight span before midnight", at(time.Friday, 23, 30), true, "weekly_schedule"},
		{"midnight span outside window", at(time.Friday, 12, 0), false, "outside_weekly_hours"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status := StatusAt(tc.now, weekdaySchedule, nil)
			assert.Equal(t, tc.expectedOpen, status.IsOpen)
			assert.Equal(t, tc.expectedReason, status.Reason)
		})
	}
}

// The early-morning side of a midnight-spanning window belongs to the day the
// window started, so it is checked against that weekday's row.
func TestStatusAt_MidnightSpanEarlyMorning(t *testing.T) {
	saturdaySchedule := []domain.WeeklyHours{
		{Weekday: time.Saturday, OpenTime: "22:00", CloseTime: "02:00"},
	}
	status := StatusAt(at(time.Saturday, 1, 0), saturdaySchedule, nil)
	assert.True(t, status.IsOpen)

	status = StatusAt(at(time.Saturday, 2, 0), saturdaySchedule, nil)
	assert.False(t, status.IsOpen)
}

func TestStatusAt_DateExceptionPrecedence(t *testing.T) {
	// Monday 10:00 would be open by the weekly schedule.
	now := at(time.Monday, 10, 0)

	t.Run("closed exception wins over open weekly hours", func(t *testing.T) {
		exc := &domain.DateException{Date: now, Closed: true}
		status := StatusAt(now, weekdaySchedule, exc)
		assert.False(t, status.IsOpen)
		assert.Equal(t, "date_exception_closed", status.Reason)
	})

	t.Run("exception hours replace weekly hours", func(t *testing.T) {
		exc := &domain.DateException{
			Date:      now,
			OpenTime:  sql.NullString{String: "13:00", Valid: true},
			CloseTime: sql.NullString{String: "17:00", Valid: true},
		}
		status := StatusAt(now, weekdaySchedule, exc)
		assert.False(t, status.IsOpen)
		assert.Equal(t, "date_exception_hours", status.Reason)

		status = StatusAt(at(time.Monday, 14, 0), weekdaySchedule, exc)
		assert.True(t, status.IsOpen)
	})

	t.Run("exception without times is open all day", func(t *testing.T) {
		exc := &domain.DateException{Date: now}
		status := StatusAt(at(time.Monday, 3, 0), weekdaySchedule, exc)
		assert.True(t, status.IsOpen)
		assert.Equal(t, "date_exception_open", status.Reason)
	})
}

func TestStatusAt_EmptySchedule(t *testing.T) {
	status := StatusAt(at(time.Monday, 10, 0), nil, nil)
	assert.False(t, status.IsOpen)
	assert.Equal(t, "no_schedule_for_weekday", status.Reason)
}

func TestParseWallClock(t *testing.T) {
	min, ok := parseWallClock("09:30")
	assert.True(t, ok)
	assert.Equal(t, 9*60+30, min)

	_, ok = parseWallClock("9h30")
	assert.False(t, ok)

	_, ok = parseWallClock("")
	assert.False(t, ok)
}
