package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opdline/clinic-queue/internal/schedule"
	"github.com/opdline/clinic-queue/pkg/logging"
)

// Handler provides the patient-facing booking endpoints and the staff queue
// transitions.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new booking HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes returns a chi router with the public booking routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/bookings", h.CreateBooking)
	r.Get("/bookings/today", h.TodayBooking)
	r.Get("/sessions/{slotType}/queue", h.Queue)
	r.Get("/sessions/{slotType}/status", h.SessionStatus)
	return r
}

// AdminRoutes returns a chi router with the staff-only queue transitions.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/bookings/{id}/consulted", h.MarkConsulted)
	r.Post("/bookings/{id}/no-show", h.MarkNoShow)
	return r
}

// CreateBooking reserves the next queue slot.
// POST /bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.service.CreateBooking(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(b); err != nil {
		h.logger.Error("failed to encode booking", "error", err)
	}
}

// TodayBooking returns the caller's booking for today, if any.
// GET /bookings/today?mobile=9876543210
func (h *Handler) TodayBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.ActiveBooking(r.Context(), r.URL.Query().Get("mobile"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b); err != nil {
		h.logger.Error("failed to encode booking", "error", err)
	}
}

// Queue returns today's queue for a session.
// GET /sessions/{slotType}/queue
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	slot, err := schedule.ParseSession(chi.URLParam(r, "slotType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown slot type")
		return
	}

	list, err := h.service.Queue(r.Context(), slot)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if list == nil {
		list = []*Booking{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		h.logger.Error("failed to encode queue", "error", err)
	}
}

// SessionStatus reports whether a session accepts bookings right now.
// GET /sessions/{slotType}/status
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	slot, err := schedule.ParseSession(chi.URLParam(r, "slotType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown slot type")
		return
	}

	status, err := h.service.Status(r.Context(), slot)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error("failed to encode session status", "error", err)
	}
}

// MarkConsulted finalizes a booking as consulted.
// POST /admin/bookings/{id}/consulted
func (h *Handler) MarkConsulted(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkConsulted)
}

// MarkNoShow finalizes a booking as a no-show.
// POST /admin/bookings/{id}/no-show
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkNoShow)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing booking id")
		return
	}

	if err := fn(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidMobile), errors.Is(err, ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyBooked), errors.Is(err, ErrBookingClosed), errors.Is(err, ErrAlreadyFinalized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrBookingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("booking request failed", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
