package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opdline/clinic-queue/internal/schedule"
	"github.com/opdline/clinic-queue/pkg/logging"
)

// DayStats summarizes one day's queue for the doctor dashboard.
type DayStats struct {
	Date            string `json:"date"`
	TotalBookings   int64  `json:"total_bookings"`
	Waiting         int64  `json:"waiting"`
	Consulted       int64  `json:"consulted"`
	NoShow          int64  `json:"no_show"`
	MorningBookings int64  `json:"morning_bookings"`
	EveningBookings int64  `json:"evening_bookings"`
}

// DayStatsSource produces the day summary. The Postgres repository below
// implements it; demo mode plugs in a view over the in-memory bookings.
type DayStatsSource interface {
	GetDayStats(ctx context.Context, date string) (*DayStats, error)
}

// statsDB defines the database interface needed by StatsRepository
type statsDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository queries day-level queue metrics from the database.
type StatsRepository struct {
	db statsDB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	if pool == nil {
		panic("clinic: pgx pool required for stats")
	}
	return &StatsRepository{db: pool}
}

// NewStatsRepositoryWithDB allows injecting a mock database for testing.
func NewStatsRepositoryWithDB(db statsDB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetDayStats aggregates booking counts for one calendar date.
func (r *StatsRepository) GetDayStats(ctx context.Context, date string) (*DayStats, error) {
	stats := &DayStats{Date: date}

	totalQuery := `SELECT COUNT(*) FROM bookings WHERE booking_date = $1`
	if err := r.db.QueryRow(ctx, totalQuery, date).Scan(&stats.TotalBookings); err != nil {
		return nil, fmt.Errorf("clinic stats: count bookings: %w", err)
	}

	consultedQuery := `SELECT COUNT(*) FROM bookings WHERE booking_date = $1 AND status = 'consulted'`
	if err := r.db.QueryRow(ctx, consultedQuery, date).Scan(&stats.Consulted); err != nil {
		return nil, fmt.Errorf("clinic stats: count consulted: %w", err)
	}

	noShowQuery := `SELECT COUNT(*) FROM bookings WHERE booking_date = $1 AND status = 'no_show'`
	if err := r.db.QueryRow(ctx, noShowQuery, date).Scan(&stats.NoShow); err != nil {
		return nil, fmt.Errorf("clinic stats: count no-shows: %w", err)
	}

	morningQuery := `SELECT COUNT(*) FROM bookings WHERE booking_date = $1 AND slot_type = 'morning'`
	if err := r.db.QueryRow(ctx, morningQuery, date).Scan(&stats.MorningBookings); err != nil {
		return nil, fmt.Errorf("clinic stats: count morning: %w", err)
	}

	eveningQuery := `SELECT COUNT(*) FROM bookings WHERE booking_date = $1 AND slot_type = 'evening'`
	if err := r.db.QueryRow(ctx, eveningQuery, date).Scan(&stats.EveningBookings); err != nil {
		return nil, fmt.Errorf("clinic stats: count evening: %w", err)
	}

	stats.Waiting = stats.TotalBookings - stats.Consulted - stats.NoShow
	return stats, nil
}

// StatsHandler provides the day dashboard endpoint for staff.
type StatsHandler struct {
	repo   DayStatsSource
	logger *logging.Logger
	now    func() time.Time
}

// NewStatsHandler creates a new stats HTTP handler. The clock is used to
// resolve "today" when no date query parameter is given.
func NewStatsHandler(repo DayStatsSource, logger *logging.Logger, now func() time.Time) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &StatsHandler{repo: repo, logger: logger, now: now}
}

// GetDayStats returns queue counts for one day.
// GET /admin/stats?date=2025-03-14 (defaults to today)
func (h *StatsHandler) GetDayStats(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = schedule.DateOf(h.now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, `{"error": "invalid date, expected YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	stats, err := h.repo.GetDayStats(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to load day stats", "date", date, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode day stats", "error", err)
	}
}
