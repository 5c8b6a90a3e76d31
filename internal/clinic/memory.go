package clinic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opdline/clinic-queue/internal/schedule"
)

// InMemorySettings is an in-process implementation of SettingsStore, used in
// tests and in demo deployments without a database.
type InMemorySettings struct {
	mu       sync.RWMutex
	settings *Settings
}

// NewInMemorySettings creates a settings store seeded with the defaults.
func NewInMemorySettings() *InMemorySettings {
	return &InMemorySettings{settings: DefaultSettings()}
}

// WithTimezone overrides the seeded timezone, typically from CLINIC_TIMEZONE.
// An unknown zone name is ignored and the default stays in place.
func (m *InMemorySettings) WithTimezone(tz string) *InMemorySettings {
	if tz == "" {
		return m
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return m
	}
	m.mu.Lock()
	m.settings.Timezone = tz
	m.mu.Unlock()
	return m
}

// Get returns a copy of the current settings.
func (m *InMemorySettings) Get(ctx context.Context) (*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	copied := *m.settings
	return &copied, nil
}

// Save validates and replaces the settings.
func (m *InMemorySettings) Save(ctx context.Context, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.settings = &copied
	return nil
}

// SetDoctorAvailable flips the global availability flag.
func (m *InMemorySettings) SetDoctorAvailable(ctx context.Context, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.DoctorAvailable = available
	return nil
}

// SetSessionClosed flips a session's bookings-closed flag.
func (m *InMemorySettings) SetSessionClosed(ctx context.Context, sess schedule.Session, closed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	block := m.settings.Session(sess)
	if block == nil {
		return fmt.Errorf("clinic: %w: %s", ErrUnknownSession, sess)
	}
	block.BookingsClosed = closed
	return nil
}
