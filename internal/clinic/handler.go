package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opdline/clinic-queue/internal/events"
	"github.com/opdline/clinic-queue/internal/schedule"
	"github.com/opdline/clinic-queue/pkg/logging"
)

// ChangePublisher records a settings change for the live feed. Delivery is
// best effort; implementations must not fail the write.
type ChangePublisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// Handler provides HTTP endpoints for clinic settings management.
type Handler struct {
	store     SettingsStore
	publisher ChangePublisher
	logger    *logging.Logger
}

// NewHandler creates a new clinic settings HTTP handler.
func NewHandler(store SettingsStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// WithPublisher attaches a change-feed publisher.
func (h *Handler) WithPublisher(p ChangePublisher) *Handler {
	h.publisher = p
	return h
}

func (h *Handler) publish(ctx context.Context, payload any) {
	if h.publisher == nil {
		return
	}
	h.publisher.Publish(ctx, events.TypeSettingsUpdated, payload)
}

// Routes returns a chi router with the staff settings routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
	r.Post("/availability", h.SetAvailability)
	r.Post("/sessions/{slotType}/close", h.CloseSession)
	r.Post("/sessions/{slotType}/open", h.OpenSession)
	return r
}

// GetSettings returns the current clinic settings.
// GET /admin/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to get clinic settings", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.logger.Error("failed to encode clinic settings", "error", err)
	}
}

// SessionSettingsUpdate is a partial update for one session's settings.
type SessionSettingsUpdate struct {
	Name            *string `json:"name,omitempty"`
	Address         *string `json:"address,omitempty"`
	StartTime       *string `json:"start_time,omitempty"`
	EndTime         *string `json:"end_time,omitempty"`
	BookingOpenTime *string `json:"booking_open_time,omitempty"`
	// BookingCloseTime set to "" clears the explicit close time.
	BookingCloseTime *string `json:"booking_close_time,omitempty"`
	BookingsClosed   *bool   `json:"bookings_closed,omitempty"`
}

// UpdateSettingsRequest is the request body for updating clinic settings.
// Absent fields keep their stored value.
type UpdateSettingsRequest struct {
	DoctorAvailable   *bool                  `json:"doctor_available,omitempty"`
	MinutesPerPatient *int                   `json:"minutes_per_patient,omitempty"`
	Timezone          *string                `json:"timezone,omitempty"`
	Morning           *SessionSettingsUpdate `json:"morning,omitempty"`
	Evening           *SessionSettingsUpdate `json:"evening,omitempty"`
}

func (u *SessionSettingsUpdate) apply(target *SessionSettings) {
	if u.Name != nil {
		target.Name = *u.Name
	}
	if u.Address != nil {
		target.Address = *u.Address
	}
	if u.StartTime != nil {
		target.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		target.EndTime = *u.EndTime
	}
	if u.BookingOpenTime != nil {
		target.BookingOpenTime = *u.BookingOpenTime
	}
	if u.BookingCloseTime != nil {
		target.BookingCloseTime = *u.BookingCloseTime
	}
	if u.BookingsClosed != nil {
		target.BookingsClosed = *u.BookingsClosed
	}
}

// UpdateSettings applies a partial update to the clinic settings.
// PUT /admin/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	settings, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to get clinic settings", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	if req.DoctorAvailable != nil {
		settings.DoctorAvailable = *req.DoctorAvailable
	}
	if req.MinutesPerPatient != nil {
		settings.MinutesPerPatient = *req.MinutesPerPatient
	}
	if req.Timezone != nil {
		settings.Timezone = *req.Timezone
	}
	if req.Morning != nil {
		req.Morning.apply(&settings.Morning)
	}
	if req.Evening != nil {
		req.Evening.apply(&settings.Evening)
	}

	if err := h.store.Save(r.Context(), settings); err != nil {
		if errors.Is(err, ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to save clinic settings", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.publish(r.Context(), map[string]any{"reason": "settings"})
	h.logger.Info("clinic settings updated")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.logger.Error("failed to encode clinic settings", "error", err)
	}
}

// SetAvailability toggles the global doctor availability flag.
// POST /admin/availability {"available": true}
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Available *bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Available == nil {
		http.Error(w, `{"error": "body must contain \"available\""}`, http.StatusBadRequest)
		return
	}

	if err := h.store.SetDoctorAvailable(r.Context(), *req.Available); err != nil {
		h.logger.Error("failed to set availability", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.publish(r.Context(), map[string]any{"reason": "availability", "available": *req.Available})
	h.logger.Info("doctor availability changed", "available", *req.Available)
	w.WriteHeader(http.StatusNoContent)
}

// CloseSession stops intake for a session for the rest of the day.
// POST /admin/sessions/{slotType}/close
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.setSessionClosed(w, r, true)
}

// OpenSession re-opens a session's intake. The closed flag persists across
// days, so staff use this to re-open each morning when needed.
// POST /admin/sessions/{slotType}/open
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	h.setSessionClosed(w, r, false)
}

func (h *Handler) setSessionClosed(w http.ResponseWriter, r *http.Request, closed bool) {
	sess, err := schedule.ParseSession(chi.URLParam(r, "slotType"))
	if err != nil {
		http.Error(w, `{"error": "slot type must be morning or evening"}`, http.StatusBadRequest)
		return
	}

	if err := h.store.SetSessionClosed(r.Context(), sess, closed); err != nil {
		h.logger.Error("failed to set session closed flag", "session", sess, "closed", closed, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.publish(r.Context(), map[string]any{"reason": "session_intake", "session": sess, "closed": closed})
	h.logger.Info("session intake flag changed", "session", sess, "closed", closed)
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
