package domain

import (
	"database/sql"
	"time"
)

// WeeklyHours is one weekday's schedule. Times use the "15:04" wall-clock
// form. OpenTime == CloseTime means closed all day; CloseTime earlier than
// OpenTime means the window spans midnight.
type WeeklyHours struct {
	Weekday   time.Weekday `json:"weekday"`
	OpenTime  string       `json:"open_time"`
	CloseTime string       `json:"close_time"`
}

// DateException overrides the weekly schedule for one calendar date.
type DateException struct {
	Date      time.Time      `json:"date"`
	Closed    bool           `json:"closed"`
	OpenTime  sql.NullString `json:"open_time,omitempty"`
	CloseTime sql.NullString `json:"close_time,omitempty"`
	Reason    sql.NullString `json:"reason,omitempty"`
}

// BusinessStatus is the derived open/closed determination. It is computed on
// demand and never persisted.
type BusinessStatus struct {
	IsOpen bool   `json:"is_open"`
	Reason string `json:"reason"`
}

// Settings gates the automatic replies.
type Settings struct {
	AutomationEnabled bool   `json:"automation_enabled"`
	WelcomeMessage    string `json:"welcome_message"`
	OutOfHoursMessage string `json:"out_of_hours_message"`
}
