package clinic

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opdline/clinic-queue/pkg/logging"
)

func newTestHandler() (*Handler, *InMemorySettings) {
	store := NewInMemorySettings()
	return NewHandler(store, logging.Default()), store
}

func TestGetSettings(t *testing.T) {
	handler, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	w := httptest.NewRecorder()
	handler.GetSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got Settings
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Morning.Name != DefaultSettings().Morning.Name {
		t.Errorf("unexpected settings payload: %+v", got)
	}
}

func TestUpdateSettingsPartial(t *testing.T) {
	handler, store := newTestHandler()

	body := `{"minutes_per_patient": 15, "morning": {"booking_close_time": "12:00"}}`
	req := httptest.NewRequest(http.MethodPut, "/admin/settings", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.UpdateSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	saved, _ := store.Get(req.Context())
	if saved.MinutesPerPatient != 15 {
		t.Errorf("MinutesPerPatient = %d, want 15", saved.MinutesPerPatient)
	}
	if saved.Morning.BookingCloseTime != "12:00" {
		t.Errorf("BookingCloseTime = %q, want 12:00", saved.Morning.BookingCloseTime)
	}
	// Untouched fields keep their values.
	if saved.Evening.StartTime != "17:00" {
		t.Errorf("evening start changed unexpectedly: %q", saved.Evening.StartTime)
	}
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	handler, store := newTestHandler()

	body := `{"minutes_per_patient": 0}`
	req := httptest.NewRequest(http.MethodPut, "/admin/settings", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.UpdateSettings(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	saved, _ := store.Get(req.Context())
	if saved.MinutesPerPatient != 10 {
		t.Errorf("invalid update must not persist, got %d", saved.MinutesPerPatient)
	}
}

func TestUpdateSettingsInvalidJSON(t *testing.T) {
	handler, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPut, "/admin/settings", strings.NewReader("{"))
	w := httptest.NewRecorder()
	handler.UpdateSettings(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSetAvailability(t *testing.T) {
	handler, store := newTestHandler()

	body, _ := json.Marshal(map[string]bool{"available": false})
	req := httptest.NewRequest(http.MethodPost, "/admin/availability", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.SetAvailability(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	saved, _ := store.Get(req.Context())
	if saved.DoctorAvailable {
		t.Errorf("expected availability off")
	}
}

func TestSetAvailabilityMissingField(t *testing.T) {
	handler, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/admin/availability", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	handler.SetAvailability(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCloseAndOpenSessionRoutes(t *testing.T) {
	handler, store := newTestHandler()
	router := handler.Routes()

	req := httptest.NewRequest(http.MethodPost, "/sessions/morning/close", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("close status = %d, want 204", w.Code)
	}
	saved, _ := store.Get(req.Context())
	if !saved.Morning.BookingsClosed {
		t.Fatalf("expected morning intake closed")
	}

	req = httptest.NewRequest(http.MethodPost, "/sessions/morning/open", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("open status = %d, want 204", w.Code)
	}
	saved, _ = store.Get(req.Context())
	if saved.Morning.BookingsClosed {
		t.Fatalf("expected morning intake re-opened")
	}

	req = httptest.NewRequest(http.MethodPost, "/sessions/afternoon/close", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown session status = %d, want 400", w.Code)
	}
}
