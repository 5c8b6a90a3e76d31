// Package schedule implements the queue scheduling rules for the clinic's two
// daily consultation sessions: booking-window checks, queue estimates, and the
// per-day partitioning that keeps each session's numbering independent.
package schedule

import (
	"fmt"
	"time"
)

// Session identifies one of the two daily consultation blocks.
type Session string

const (
	SessionMorning Session = "morning"
	SessionEvening Session = "evening"
)

// ParseSession validates a slot type coming from the outside.
func ParseSession(v string) (Session, error) {
	switch Session(v) {
	case SessionMorning, SessionEvening:
		return Session(v), nil
	}
	return "", fmt.Errorf("schedule: unknown session %q", v)
}

// Sessions lists the supported sessions in display order.
func Sessions() []Session {
	return []Session{SessionMorning, SessionEvening}
}

// TimeOfDay is a wall-clock minute within a day. Comparisons happen at minute
// resolution against the clinic's local time.
type TimeOfDay struct {
	Minutes int
}

// ParseTimeOfDay parses an HH:MM clock string.
func ParseTimeOfDay(v string) (TimeOfDay, error) {
	if v == "" {
		return TimeOfDay{}, fmt.Errorf("schedule: empty clock")
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("schedule: parse clock %q: %w", v, err)
	}
	return TimeOfDay{Minutes: t.Hour()*60 + t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Minutes/60, t.Minutes%60)
}

// At pins the time-of-day onto the calendar day of ref, in ref's location.
func (t TimeOfDay) At(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Minutes/60, t.Minutes%60, 0, 0, ref.Location())
}

// Before reports whether t is earlier than the wall-clock minute of ref.
func (t TimeOfDay) Before(ref time.Time) bool {
	return t.Minutes < minuteOf(ref)
}

func minuteOf(ref time.Time) int {
	return ref.Hour()*60 + ref.Minute()
}

// DateOf returns the calendar-date partition key (YYYY-MM-DD) for ref.
// Queue numbers and the already-booked check are scoped to this key, so a new
// day starts a fresh, independently numbered queue without any migration step.
func DateOf(ref time.Time) string {
	return ref.Format("2006-01-02")
}
