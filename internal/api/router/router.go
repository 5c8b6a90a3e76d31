// Package router assembles the HTTP surface: public booking endpoints, the
// staff area behind JWT auth, and the operational endpoints.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opdline/clinic-queue/internal/booking"
	"github.com/opdline/clinic-queue/internal/clinic"
	httpmiddleware "github.com/opdline/clinic-queue/internal/http/middleware"
	"github.com/opdline/clinic-queue/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	BookingHandler  *booking.Handler
	ClinicHandler   *clinic.Handler
	StatsHandler    *clinic.StatsHandler
	FeedHandler     http.Handler
	MetricsHandler  http.Handler
	StaffAuthSecret string

	CORSAllowedOrigins []string

	// BookingRatePerSec throttles the public booking write path per IP.
	// Zero disables the limiter.
	BookingRatePerSec float64
	BookingBurst      int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: the booking page and the live queue views.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.FeedHandler != nil {
			public.Handle("/feed", cfg.FeedHandler)
		}
		if cfg.BookingHandler != nil {
			if cfg.BookingRatePerSec > 0 {
				public.With(httpmiddleware.RateLimit(cfg.BookingRatePerSec, cfg.BookingBurst)).
					Mount("/", cfg.BookingHandler.Routes())
			} else {
				public.Mount("/", cfg.BookingHandler.Routes())
			}
		}
	})

	// Staff area: queue transitions, settings, stats.
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.StaffJWT(cfg.StaffAuthSecret))
		if cfg.BookingHandler != nil {
			admin.Post("/bookings/{id}/consulted", cfg.BookingHandler.MarkConsulted)
			admin.Post("/bookings/{id}/no-show", cfg.BookingHandler.MarkNoShow)
		}
		if cfg.StatsHandler != nil {
			admin.Get("/stats", cfg.StatsHandler.GetDayStats)
		}
		if cfg.ClinicHandler != nil {
			admin.Mount("/", cfg.ClinicHandler.Routes())
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
