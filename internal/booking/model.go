package booking

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/opdline/clinic-queue/internal/schedule"
)

// Status is a booking's place in its lifecycle. Waiting transitions to
// consulted or no_show; both are terminal.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusConsulted Status = "consulted"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusConsulted || s == StatusNoShow
}

// GuestName is used when a patient books without giving a name.
const GuestName = "Guest Patient"

// Booking is one patient's numbered slot in a session's queue. Queue number,
// slot type, booking date and mobile number are immutable once created; only
// the status changes. EstimatedTime and Position are derived from the current
// waiting set on every read and are never stored.
type Booking struct {
	ID           uuid.UUID        `json:"id"`
	MobileNumber string           `json:"mobile_number"`
	PatientName  string           `json:"patient_name"`
	SlotType     schedule.Session `json:"slot_type"`
	QueueNumber  int              `json:"queue_number"`
	Status       Status           `json:"status"`
	BookingDate  string           `json:"booking_date"`
	CreatedAt    time.Time        `json:"created_at"`

	EstimatedTime time.Time `json:"estimated_time,omitzero"`
	Position      int       `json:"position,omitempty"`
}

// CreateBookingRequest represents a patient's booking submission.
type CreateBookingRequest struct {
	MobileNumber string `json:"mobile_number"`
	PatientName  string `json:"patient_name"`
	SlotType     string `json:"slot_type"`
}

// Validate checks the request before any queue logic runs. The mobile number
// must be exactly 10 digits after stripping spaces and dashes.
func (r *CreateBookingRequest) Validate() error {
	mobile := normalizeMobile(r.MobileNumber)
	if len(mobile) != 10 {
		return ErrInvalidMobile
	}
	if _, err := schedule.ParseSession(r.SlotType); err != nil {
		return ErrInvalidSlot
	}
	r.MobileNumber = mobile
	return nil
}

func normalizeMobile(v string) string {
	var b strings.Builder
	for _, r := range v {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r != ' ' && r != '-' {
			return ""
		}
	}
	return b.String()
}
