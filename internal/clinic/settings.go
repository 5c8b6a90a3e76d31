// Package clinic provides clinic configuration and day-level statistics.
package clinic

import (
	"errors"
	"fmt"
	"time"

	"github.com/opdline/clinic-queue/internal/schedule"
)

var (
	// ErrInvalidSettings wraps every settings validation failure.
	ErrInvalidSettings = errors.New("invalid clinic settings")

	// ErrUnknownSession is returned for a slot type outside morning/evening.
	ErrUnknownSession = errors.New("unknown session")
)

// SessionSettings configures one consultation session. Times are HH:MM wall
// clocks in the clinic's timezone. An empty BookingCloseTime means intake
// stays open until the session ends.
type SessionSettings struct {
	Name             string `json:"name"`
	Address          string `json:"address"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	BookingOpenTime  string `json:"booking_open_time"`
	BookingCloseTime string `json:"booking_close_time,omitempty"`
	// BookingsClosed is set by staff to stop intake early. It persists across
	// days until staff re-open the session.
	BookingsClosed bool `json:"bookings_closed"`
}

// Settings holds the clinic-wide configuration read by the booking engine.
// Callers fetch a snapshot per operation; there is no process-wide mutable
// settings singleton.
type Settings struct {
	DoctorAvailable   bool            `json:"doctor_available"`
	MinutesPerPatient int             `json:"minutes_per_patient"`
	Timezone          string          `json:"timezone"`
	Morning           SessionSettings `json:"morning"`
	Evening           SessionSettings `json:"evening"`
}

// DefaultSettings returns the seed configuration for a fresh install.
func DefaultSettings() *Settings {
	return &Settings{
		DoctorAvailable:   true,
		MinutesPerPatient: 10,
		Timezone:          "Asia/Kolkata",
		Morning: SessionSettings{
			Name:            "Clinic A - Morning Wellness Center",
			Address:         "123 Health Street, Medical District",
			StartTime:       "10:00",
			EndTime:         "13:00",
			BookingOpenTime: "09:00",
		},
		Evening: SessionSettings{
			Name:            "Clinic B - Evening Care Center",
			Address:         "456 Healing Avenue, Wellness Park",
			StartTime:       "17:00",
			EndTime:         "20:00",
			BookingOpenTime: "18:00",
		},
	}
}

// Session returns the settings block for the given session.
func (s *Settings) Session(sess schedule.Session) *SessionSettings {
	switch sess {
	case schedule.SessionMorning:
		return &s.Morning
	case schedule.SessionEvening:
		return &s.Evening
	}
	return nil
}

// Hours parses the session's clock strings into the form the scheduling
// engine consumes.
func (s *Settings) Hours(sess schedule.Session) (schedule.Hours, error) {
	block := s.Session(sess)
	if block == nil {
		return schedule.Hours{}, fmt.Errorf("clinic: %w: %s", ErrUnknownSession, sess)
	}
	start, err := schedule.ParseTimeOfDay(block.StartTime)
	if err != nil {
		return schedule.Hours{}, fmt.Errorf("clinic: %s start time: %w", sess, err)
	}
	end, err := schedule.ParseTimeOfDay(block.EndTime)
	if err != nil {
		return schedule.Hours{}, fmt.Errorf("clinic: %s end time: %w", sess, err)
	}
	opens, err := schedule.ParseTimeOfDay(block.BookingOpenTime)
	if err != nil {
		return schedule.Hours{}, fmt.Errorf("clinic: %s booking open time: %w", sess, err)
	}
	hours := schedule.Hours{Start: start, End: end, BookingOpens: opens}
	if block.BookingCloseTime != "" {
		closes, err := schedule.ParseTimeOfDay(block.BookingCloseTime)
		if err != nil {
			return schedule.Hours{}, fmt.Errorf("clinic: %s booking close time: %w", sess, err)
		}
		hours.BookingCloses = &closes
	}
	return hours, nil
}

// Location resolves the clinic timezone, falling back to UTC when the name is
// missing or invalid.
func (s *Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the settings before they are persisted. Booking windows may
// not span midnight: open must not be later than close, and close must not be
// later than the session end.
func (s *Settings) Validate() error {
	if s.MinutesPerPatient <= 0 {
		return fmt.Errorf("%w: minutes per patient must be positive, got %d", ErrInvalidSettings, s.MinutesPerPatient)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%w: timezone: %v", ErrInvalidSettings, err)
		}
	}
	for _, sess := range schedule.Sessions() {
		hours, err := s.Hours(sess)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		closes := hours.End
		if hours.BookingCloses != nil {
			closes = *hours.BookingCloses
		}
		if hours.BookingOpens.Minutes > closes.Minutes {
			return fmt.Errorf("%w: %s booking window opens %s after it closes %s", ErrInvalidSettings, sess, hours.BookingOpens, closes)
		}
		if closes.Minutes > hours.End.Minutes {
			return fmt.Errorf("%w: %s booking close %s is after session end %s", ErrInvalidSettings, sess, closes, hours.End)
		}
	}
	return nil
}
