package schedule

import (
	"fmt"
	"time"
)

// Hours is the weekly window in which automatic refreshes run. A start
// hour after the end hour wraps past midnight (22 to 6 covers late
// evening into the next morning).
type Hours struct {
	StartHour int
	EndHour   int
	Days      []time.Weekday
}

// DefaultHours covers working hours on weekdays.
func DefaultHours() Hours {
	return Hours{
		StartHour: 9,
		EndHour:   17,
		Days: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

// Active reports whether t falls inside the window.
func (h Hours) Active(t time.Time) bool {
	if !h.dayActive(t.Weekday()) {
		return false
	}
	hour := t.Hour()
	if h.StartHour <= h.EndHour {
		return hour >= h.StartHour && hour < h.EndHour
	}
	return hour >= h.StartHour || hour < h.EndHour
}

func (h Hours) dayActive(d time.Weekday) bool {
	for _, day := range h.Days {
		if day == d {
			return true
		}
	}
	return false
}

// NextActive returns the next instant the window opens at or after now.
// The scan is bounded to a week ahead; ok is false when no day is active.
func (h Hours) NextActive(now time.Time) (next time.Time, ok bool) {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), h.StartHour, 0, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	for i := 0; i <= 7; i++ {
		if h.dayActive(candidate.Weekday()) {
			return candidate, true
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

// NextActiveText renders the next window opening for the status line:
// "09:00" when later today, "Tomorrow, 09:00", or "Monday, 09:00".
func (h Hours) NextActiveText(now time.Time) string {
	next, ok := h.NextActive(now)
	if !ok {
		return fmt.Sprintf("%02d:00", h.StartHour)
	}

	clock := fmt.Sprintf("%02d:00", next.Hour())
	switch {
	case sameDay(next, now):
		return clock
	case sameDay(next, now.AddDate(0, 0, 1)):
		return "Tomorrow, " + clock
	default:
		return next.Weekday().String() + ", " + clock
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
