package schedule

import "time"

// Estimate computes the expected consultation time for a booking: the session
// start plus one per-patient slot for every still-waiting booking ahead of it.
// Consulted and no-show bookings ahead no longer add wait, so estimates
// compress as the queue is worked through; callers recompute on every read and
// never trust a stored value.
func Estimate(sessionStart TimeOfDay, waitingAhead, minutesPerPatient int, day time.Time) time.Time {
	return sessionStart.At(day).Add(time.Duration(waitingAhead*minutesPerPatient) * time.Minute)
}
