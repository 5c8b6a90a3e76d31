package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opdline/clinic-queue/internal/schedule"
)

// SettingsStore is the persistence surface the handlers and the booking
// service depend on. Implemented by Store and CachedStore.
type SettingsStore interface {
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
	SetDoctorAvailable(ctx context.Context, available bool) error
	SetSessionClosed(ctx context.Context, sess schedule.Session, closed bool) error
}

// settingsDB defines the database interface needed by Store.
type settingsDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists the clinic settings as a single row.
type Store struct {
	db settingsDB
}

// NewStore creates a store backed by pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("clinic: pgx pool required")
	}
	return &Store{db: pool}
}

// NewStoreWithDB allows injecting a mock database for testing.
func NewStoreWithDB(db settingsDB) *Store {
	return &Store{db: db}
}

const settingsColumns = `
	doctor_available, minutes_per_patient, timezone,
	morning_name, morning_address, morning_start_time, morning_end_time,
	morning_booking_open_time, morning_booking_close_time, morning_bookings_closed,
	evening_name, evening_address, evening_start_time, evening_end_time,
	evening_booking_open_time, evening_booking_close_time, evening_bookings_closed`

// Get loads the settings row, or the defaults when none has been saved yet.
func (s *Store) Get(ctx context.Context) (*Settings, error) {
	query := `SELECT` + settingsColumns + ` FROM clinic_settings WHERE id = 1`
	var (
		out          Settings
		morningClose *string
		eveningClose *string
	)
	err := s.db.QueryRow(ctx, query).Scan(
		&out.DoctorAvailable, &out.MinutesPerPatient, &out.Timezone,
		&out.Morning.Name, &out.Morning.Address, &out.Morning.StartTime, &out.Morning.EndTime,
		&out.Morning.BookingOpenTime, &morningClose, &out.Morning.BookingsClosed,
		&out.Evening.Name, &out.Evening.Address, &out.Evening.StartTime, &out.Evening.EndTime,
		&out.Evening.BookingOpenTime, &eveningClose, &out.Evening.BookingsClosed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: load settings: %w", err)
	}
	if morningClose != nil {
		out.Morning.BookingCloseTime = *morningClose
	}
	if eveningClose != nil {
		out.Evening.BookingCloseTime = *eveningClose
	}
	return &out, nil
}

// Save validates and upserts the settings row.
func (s *Store) Save(ctx context.Context, settings *Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO clinic_settings (id,` + settingsColumns + `)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			doctor_available = EXCLUDED.doctor_available,
			minutes_per_patient = EXCLUDED.minutes_per_patient,
			timezone = EXCLUDED.timezone,
			morning_name = EXCLUDED.morning_name,
			morning_address = EXCLUDED.morning_address,
			morning_start_time = EXCLUDED.morning_start_time,
			morning_end_time = EXCLUDED.morning_end_time,
			morning_booking_open_time = EXCLUDED.morning_booking_open_time,
			morning_booking_close_time = EXCLUDED.morning_booking_close_time,
			morning_bookings_closed = EXCLUDED.morning_bookings_closed,
			evening_name = EXCLUDED.evening_name,
			evening_address = EXCLUDED.evening_address,
			evening_start_time = EXCLUDED.evening_start_time,
			evening_end_time = EXCLUDED.evening_end_time,
			evening_booking_open_time = EXCLUDED.evening_booking_open_time,
			evening_booking_close_time = EXCLUDED.evening_booking_close_time,
			evening_bookings_closed = EXCLUDED.evening_bookings_closed,
			updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query,
		settings.DoctorAvailable, settings.MinutesPerPatient, settings.Timezone,
		settings.Morning.Name, settings.Morning.Address, settings.Morning.StartTime, settings.Morning.EndTime,
		settings.Morning.BookingOpenTime, nullableClock(settings.Morning.BookingCloseTime), settings.Morning.BookingsClosed,
		settings.Evening.Name, settings.Evening.Address, settings.Evening.StartTime, settings.Evening.EndTime,
		settings.Evening.BookingOpenTime, nullableClock(settings.Evening.BookingCloseTime), settings.Evening.BookingsClosed,
	); err != nil {
		return fmt.Errorf("clinic: save settings: %w", err)
	}
	return nil
}

// SetDoctorAvailable flips the global availability flag.
func (s *Store) SetDoctorAvailable(ctx context.Context, available bool) error {
	query := `UPDATE clinic_settings SET doctor_available = $1, updated_at = now() WHERE id = 1`
	if _, err := s.db.Exec(ctx, query, available); err != nil {
		return fmt.Errorf("clinic: set availability: %w", err)
	}
	return nil
}

// SetSessionClosed flips a session's bookings-closed flag.
func (s *Store) SetSessionClosed(ctx context.Context, sess schedule.Session, closed bool) error {
	var query string
	switch sess {
	case schedule.SessionMorning:
		query = `UPDATE clinic_settings SET morning_bookings_closed = $1, updated_at = now() WHERE id = 1`
	case schedule.SessionEvening:
		query = `UPDATE clinic_settings SET evening_bookings_closed = $1, updated_at = now() WHERE id = 1`
	default:
		return fmt.Errorf("clinic: %w: %s", ErrUnknownSession, sess)
	}
	if _, err := s.db.Exec(ctx, query, closed); err != nil {
		return fmt.Errorf("clinic: set session closed: %w", err)
	}
	return nil
}

func nullableClock(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
