package schedule

import "time"

// Hours describes the timing of a single session. BookingCloses is nil when no
// explicit close time is configured; intake then stays open until the session
// ends. Windows never span midnight.
type Hours struct {
	Start         TimeOfDay
	End           TimeOfDay
	BookingOpens  TimeOfDay
	BookingCloses *TimeOfDay
}

// closeMinute is the last minute at which intake is still open.
func (h Hours) closeMinute() int {
	if h.BookingCloses != nil {
		return h.BookingCloses.Minutes
	}
	return h.End.Minutes
}

// BookingOpen decides whether a session currently accepts bookings. Intake is
// closed when the doctor is unavailable, when staff flagged the session closed,
// or when now falls outside [booking open, booking close-or-session end].
// Comparisons are same-day wall-clock minutes; pure function of its inputs.
func BookingOpen(h Hours, doctorAvailable, sessionClosed bool, now time.Time) bool {
	if !doctorAvailable || sessionClosed {
		return false
	}
	minute := minuteOf(now)
	return minute >= h.BookingOpens.Minutes && minute <= h.closeMinute()
}

// UntilOpen returns how long until the booking window opens, and false when the
// window has already opened (or passed) today.
func UntilOpen(h Hours, now time.Time) (time.Duration, bool) {
	opens := h.BookingOpens.At(now)
	if !now.Before(opens) {
		return 0, false
	}
	return opens.Sub(now), true
}
