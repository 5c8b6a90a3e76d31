package booking

import "errors"

var (
	// ErrInvalidMobile is returned when the mobile number is not a 10-digit number.
	ErrInvalidMobile = errors.New("a valid 10-digit mobile number is required")

	// ErrInvalidSlot is returned when the slot type is not morning or evening.
	ErrInvalidSlot = errors.New("slot type must be morning or evening")

	// ErrAlreadyBooked is returned when the mobile number already holds a
	// booking for today. A no-show still counts as booked; only a consulted
	// booking frees the number for the day.
	ErrAlreadyBooked = errors.New("this mobile number already has a booking today")

	// ErrBookingClosed is returned when the session is not accepting bookings.
	ErrBookingClosed = errors.New("booking is not open for this slot")

	// ErrBookingNotFound is returned when no booking matches the given id.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrAlreadyFinalized is returned on a status transition out of a
	// terminal state (consulted or no_show).
	ErrAlreadyFinalized = errors.New("booking already finalized")

	// ErrQueueConflict is returned when queue number assignment keeps losing
	// the insert race; the caller may retry the whole operation.
	ErrQueueConflict = errors.New("could not assign a queue number")
)
