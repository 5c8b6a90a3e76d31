package booking

import (
	"context"
	"fmt"

	"github.com/opdline/clinic-queue/internal/clinic"
	"github.com/opdline/clinic-queue/internal/schedule"
)

// MemoryStats builds the day dashboard summary from a booking repository,
// for deployments running without a database.
type MemoryStats struct {
	repo Repository
}

// NewMemoryStats creates a stats source over the given repository.
func NewMemoryStats(repo Repository) *MemoryStats {
	if repo == nil {
		panic("booking: repository required for stats")
	}
	return &MemoryStats{repo: repo}
}

// GetDayStats counts one calendar date's bookings by status and session.
func (m *MemoryStats) GetDayStats(ctx context.Context, date string) (*clinic.DayStats, error) {
	list, err := m.repo.List(ctx, Filter{Date: date})
	if err != nil {
		return nil, fmt.Errorf("booking: list for stats: %w", err)
	}

	stats := &clinic.DayStats{Date: date}
	for _, b := range list {
		stats.TotalBookings++
		switch b.Status {
		case StatusConsulted:
			stats.Consulted++
		case StatusNoShow:
			stats.NoShow++
		default:
			stats.Waiting++
		}
		switch b.SlotType {
		case schedule.SessionMorning:
			stats.MorningBookings++
		case schedule.SessionEvening:
			stats.EveningBookings++
		}
	}
	return stats, nil
}
