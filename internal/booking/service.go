package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opdline/clinic-queue/internal/clinic"
	"github.com/opdline/clinic-queue/internal/events"
	"github.com/opdline/clinic-queue/internal/observability/metrics"
	"github.com/opdline/clinic-queue/internal/schedule"
	"github.com/opdline/clinic-queue/pkg/logging"
)

var bookingTracer = otel.Tracer("clinicq.internal.booking")

// SettingsSource supplies the settings snapshot each operation runs against.
type SettingsSource interface {
	Get(ctx context.Context) (*clinic.Settings, error)
}

// ChangePublisher records a change hint for the feed. Implementations must
// not fail the calling operation; delivery is best effort and at-least-once.
type ChangePublisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// Service runs the booking queue: window checks, queue number assignment,
// estimates, and status transitions.
type Service struct {
	repo      Repository
	settings  SettingsSource
	publisher ChangePublisher
	metrics   *metrics.QueueMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewService constructs a booking service.
func NewService(repo Repository, settings SettingsSource, logger *logging.Logger) *Service {
	if repo == nil {
		panic("booking: repository required")
	}
	if settings == nil {
		panic("booking: settings source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// WithPublisher attaches a change-feed publisher.
func (s *Service) WithPublisher(p ChangePublisher) *Service {
	s.publisher = p
	return s
}

// WithMetrics attaches queue metrics.
func (s *Service) WithMetrics(m *metrics.QueueMetrics) *Service {
	s.metrics = m
	return s
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// rejectionSlotLabel maps the submitted slot type to a bounded metric label.
// The raw string is client-controlled and must never become a label value.
func rejectionSlotLabel(raw string) string {
	if slot, err := schedule.ParseSession(raw); err == nil {
		return string(slot)
	}
	return "invalid"
}

// CreateBooking reserves the next queue slot for a patient. Checks run in
// order: the mobile number must not already hold a booking today (a no-show
// still blocks, only consulted frees the number), then the session's booking
// window must be open. Queue number assignment is delegated to the
// repository, which serializes it per partition.
func (s *Service) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create")
	defer span.End()

	started := s.now()

	if err := req.Validate(); err != nil {
		s.metrics.ObserveRejection(rejectionSlotLabel(req.SlotType), "validation")
		return nil, err
	}
	slot := schedule.Session(req.SlotType)
	span.SetAttributes(attribute.String("clinicq.slot", string(slot)))

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: load settings: %w", err)
	}
	now := s.now().In(settings.Location())
	date := schedule.DateOf(now)
	span.SetAttributes(attribute.String("clinicq.date", date))

	if _, err := s.repo.ActiveByMobile(ctx, req.MobileNumber, date); err == nil {
		s.metrics.ObserveRejection(string(slot), "already_booked")
		return nil, ErrAlreadyBooked
	} else if !errors.Is(err, ErrBookingNotFound) {
		span.RecordError(err)
		return nil, err
	}

	hours, err := settings.Hours(slot)
	if err != nil {
		return nil, err
	}
	block := settings.Session(slot)
	if !schedule.BookingOpen(hours, settings.DoctorAvailable, block.BookingsClosed, now) {
		s.metrics.ObserveRejection(string(slot), "window_closed")
		return nil, ErrBookingClosed
	}

	name := strings.TrimSpace(req.PatientName)
	if name == "" {
		name = GuestName
	}

	stored, err := s.repo.Insert(ctx, &Booking{
		ID:           uuid.New(),
		MobileNumber: req.MobileNumber,
		PatientName:  name,
		SlotType:     slot,
		Status:       StatusWaiting,
		BookingDate:  date,
		CreatedAt:    now,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ahead, err := s.repo.CountWaitingAhead(ctx, slot, date, stored.QueueNumber)
	if err != nil {
		// The booking is committed; fall back to the worst-case estimate.
		s.logger.Warn("waiting-ahead count failed after insert", "booking_id", stored.ID, "error", err)
		ahead = stored.QueueNumber - 1
	}
	stored.EstimatedTime = schedule.Estimate(hours.Start, ahead, settings.MinutesPerPatient, now)
	stored.Position = ahead + 1

	s.publish(ctx, events.TypeBookingCreated, map[string]any{
		"booking_id": stored.ID,
		"slot_type":  stored.SlotType,
		"date":       stored.BookingDate,
	})
	s.metrics.ObserveBooking(string(slot))
	s.metrics.ObserveCreateLatency(string(slot), s.now().Sub(started).Seconds())
	s.logger.Info("booking created",
		"booking_id", stored.ID,
		"slot", stored.SlotType,
		"queue_number", stored.QueueNumber,
		"date", stored.BookingDate,
	)
	return stored, nil
}

// MarkConsulted finalizes a waiting booking as consulted. Estimates of the
// remaining waiting bookings are not rewritten; they are derived from the
// current waiting set on the next read.
func (s *Service) MarkConsulted(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusConsulted)
}

// MarkNoShow finalizes a waiting booking as a no-show. The mobile number
// remains blocked from rebooking for the rest of the day.
func (s *Service) MarkNoShow(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusNoShow)
}

func (s *Service) transition(ctx context.Context, id string, to Status) error {
	ctx, span := bookingTracer.Start(ctx, "booking.transition")
	defer span.End()
	span.SetAttributes(attribute.String("clinicq.to_status", string(to)))

	if err := s.repo.UpdateStatus(ctx, id, StatusWaiting, to); err != nil {
		if !errors.Is(err, ErrBookingNotFound) && !errors.Is(err, ErrAlreadyFinalized) {
			span.RecordError(err)
		}
		return err
	}

	s.publish(ctx, events.TypeBookingStatusChanged, map[string]any{
		"booking_id": id,
		"status":     to,
	})
	s.metrics.ObserveTransition(string(to))
	s.logger.Info("booking status changed", "booking_id", id, "status", to)
	return nil
}

// Queue returns today's bookings for a session in queue order, with estimates
// and positions recomputed from the current waiting set in a single pass.
func (s *Service) Queue(ctx context.Context, slot schedule.Session) ([]*Booking, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: load settings: %w", err)
	}
	hours, err := settings.Hours(slot)
	if err != nil {
		return nil, err
	}
	now := s.now().In(settings.Location())

	list, err := s.repo.List(ctx, Filter{Date: schedule.DateOf(now), SlotType: slot})
	if err != nil {
		return nil, err
	}

	waitingAhead := 0
	for _, b := range list {
		if b.Status != StatusWaiting {
			continue
		}
		b.EstimatedTime = schedule.Estimate(hours.Start, waitingAhead, settings.MinutesPerPatient, now)
		b.Position = waitingAhead + 1
		waitingAhead++
	}
	return list, nil
}

// ActiveBooking returns the mobile number's booking for today, if any, with
// its live position and estimate.
func (s *Service) ActiveBooking(ctx context.Context, mobile string) (*Booking, error) {
	mobile = normalizeMobile(mobile)
	if len(mobile) != 10 {
		return nil, ErrInvalidMobile
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: load settings: %w", err)
	}
	now := s.now().In(settings.Location())

	b, err := s.repo.ActiveByMobile(ctx, mobile, schedule.DateOf(now))
	if err != nil {
		return nil, err
	}
	if b.Status == StatusWaiting {
		hours, err := settings.Hours(b.SlotType)
		if err != nil {
			return nil, err
		}
		ahead, err := s.repo.CountWaitingAhead(ctx, b.SlotType, b.BookingDate, b.QueueNumber)
		if err != nil {
			return nil, err
		}
		b.EstimatedTime = schedule.Estimate(hours.Start, ahead, settings.MinutesPerPatient, now)
		b.Position = ahead + 1
	}
	return b, nil
}

// SessionStatus describes a session's intake state for the booking page.
type SessionStatus struct {
	SlotType        schedule.Session `json:"slot_type"`
	ClinicName      string           `json:"clinic_name"`
	Address         string           `json:"address"`
	StartTime       string           `json:"start_time"`
	EndTime         string           `json:"end_time"`
	BookingOpenTime string           `json:"booking_open_time"`
	Open            bool             `json:"open"`
	WaitingCount    int              `json:"waiting_count"`
	OpensInSeconds  int64            `json:"opens_in_seconds,omitempty"`
}

// Status reports whether a session currently accepts bookings, how many
// patients are waiting, and the countdown until the window opens.
func (s *Service) Status(ctx context.Context, slot schedule.Session) (*SessionStatus, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: load settings: %w", err)
	}
	hours, err := settings.Hours(slot)
	if err != nil {
		return nil, err
	}
	block := settings.Session(slot)
	now := s.now().In(settings.Location())

	waiting, err := s.repo.List(ctx, Filter{
		Date:     schedule.DateOf(now),
		SlotType: slot,
		Status:   StatusWaiting,
	})
	if err != nil {
		return nil, err
	}

	status := &SessionStatus{
		SlotType:        slot,
		ClinicName:      block.Name,
		Address:         block.Address,
		StartTime:       block.StartTime,
		EndTime:         block.EndTime,
		BookingOpenTime: block.BookingOpenTime,
		Open:            schedule.BookingOpen(hours, settings.DoctorAvailable, block.BookingsClosed, now),
		WaitingCount:    len(waiting),
	}
	if d, pending := schedule.UntilOpen(hours, now); pending {
		status.OpensInSeconds = int64(d.Seconds())
	}
	return status, nil
}

func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, eventType, payload)
}
