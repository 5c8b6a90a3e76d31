package booking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opdline/clinic-queue/internal/clinic"
	"github.com/opdline/clinic-queue/internal/observability/metrics"
	"github.com/opdline/clinic-queue/internal/schedule"
	"github.com/opdline/clinic-queue/pkg/logging"
)

type capturingPublisher struct {
	events []string
}

func (p *capturingPublisher) Publish(ctx context.Context, eventType string, payload any) {
	p.events = append(p.events, eventType)
}

// at returns a fixed wall-clock instant on the test day.
func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func newTestService(t *testing.T, now time.Time) (*Service, *clinic.InMemorySettings, *capturingPublisher) {
	t.Helper()

	settings := clinic.NewInMemorySettings()
	s, err := settings.Get(context.Background())
	require.NoError(t, err)
	s.Timezone = "UTC"
	require.NoError(t, settings.Save(context.Background(), s))

	pub := &capturingPublisher{}
	svc := NewService(NewInMemoryRepository(), settings, logging.Default()).
		WithPublisher(pub).
		WithMetrics(metrics.NewQueueMetrics(prometheus.NewRegistry())).
		WithNow(func() time.Time { return now })
	return svc, settings, pub
}

func TestCreateBookingAssignsQueueAndEstimate(t *testing.T) {
	svc, _, pub := newTestService(t, at(9, 5))
	ctx := context.Background()

	a, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", PatientName: "Asha", SlotType: "morning"})
	require.NoError(t, err)
	assert.Equal(t, 1, a.QueueNumber)
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, at(10, 0), a.EstimatedTime, "first patient is seen at session start")
	assert.Equal(t, StatusWaiting, a.Status)
	assert.Equal(t, "2026-03-02", a.BookingDate)

	b, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543211", PatientName: "Binod", SlotType: "morning"})
	require.NoError(t, err)
	assert.Equal(t, 2, b.QueueNumber)
	assert.Equal(t, 2, b.Position)
	assert.Equal(t, at(10, 10), b.EstimatedTime, "ten minutes per patient ahead")

	assert.Equal(t, []string{"booking.created", "booking.created"}, pub.events)
}

func TestQueueEstimatesCompressAfterConsult(t *testing.T) {
	svc, _, _ := newTestService(t, at(9, 5))
	ctx := context.Background()

	a, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	require.NoError(t, err)
	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543211", SlotType: "morning"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkConsulted(ctx, a.ID.String()))

	queue, err := svc.Queue(ctx, schedule.SessionMorning)
	require.NoError(t, err)
	require.Len(t, queue, 2)

	assert.Equal(t, StatusConsulted, queue[0].Status)
	assert.True(t, queue[0].EstimatedTime.IsZero(), "finalized bookings carry no estimate")

	// The remaining patient keeps queue number 2 but moves up to the front.
	assert.Equal(t, 2, queue[1].QueueNumber)
	assert.Equal(t, 1, queue[1].Position)
	assert.Equal(t, at(10, 0), queue[1].EstimatedTime)
}

func TestCreateBookingDuplicateMobile(t *testing.T) {
	svc, _, _ := newTestService(t, at(9, 5))
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	require.NoError(t, err)

	// Same number, same day: blocked, even across sessions. The separator
	// variant normalizes to the same number.
	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "98765 432-10", SlotType: "morning"})
	assert.ErrorIs(t, err, ErrAlreadyBooked)

	// The evening session does not free the number either, and the duplicate
	// check fires before the window check, so this is rejected as a duplicate
	// even while the evening window is still shut.
	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "evening"})
	assert.ErrorIs(t, err, ErrAlreadyBooked)
}

func TestCreateBookingRejectionMetricLabelBounded(t *testing.T) {
	svc, _, _ := newTestService(t, at(9, 5))
	reg := prometheus.NewRegistry()
	svc.WithMetrics(metrics.NewQueueMetrics(reg))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := svc.CreateBooking(ctx, &CreateBookingRequest{
			MobileNumber: "9876543210",
			SlotType:     fmt.Sprintf("garbage-%d", i),
		})
		require.ErrorIs(t, err, ErrInvalidSlot)
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "clinicq_queue_rejections_total" {
			continue
		}
		// Every garbage slot type collapses into one bounded series.
		require.Len(t, mf.GetMetric(), 1)
		series := mf.GetMetric()[0]
		labels := map[string]string{}
		for _, l := range series.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		assert.Equal(t, "invalid", labels["slot"])
		assert.Equal(t, "validation", labels["reason"])
		assert.Equal(t, float64(50), series.GetCounter().GetValue())
		return
	}
	t.Fatal("rejections counter was not gathered")
}

func TestNoShowStillBlocksRebooking(t *testing.T) {
	svc, _, _ := newTestService(t, at(9, 5))
	ctx := context.Background()

	a, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkNoShow(ctx, a.ID.String()))

	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	assert.ErrorIs(t, err, ErrAlreadyBooked)
}

func TestConsultedFreesTheNumber(t *testing.T) {
	svc, _, _ := newTestService(t, at(9, 5))
	ctx := context.Background()

	a, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkConsulted(ctx, a.ID.String()))

	b, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	require.NoError(t, err)
	assert.Equal(t, 2, b.QueueNumber, "numbers never rewind within the partition")
}

func TestCreateBookingWindowBoundaries(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want error
	}{
		{name: "before open", now: at(8, 30), want: ErrBookingClosed},
		{name: "at open", now: at(9, 0)},
		{name: "just before end", now: at(12, 59)},
		{name: "at end", now: at(13, 0)},
		{name: "after end", now: at(13, 1), want: ErrBookingClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, tt.now)
			_, err := svc.CreateBooking(context.Background(), &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCreateBookingDoctorUnavailable(t *testing.T) {
	svc, settings, _ := newTestService(t, at(9, 5))
	ctx := context.Background()

	require.NoError(t, settings.SetDoctorAvailable(ctx, false))
	_, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	assert.ErrorIs(t, err, ErrBookingClosed)

	require.NoError(t, settings.SetDoctorAvailable(ctx, true))
	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	require.NoError(t, err)
}

func TestCreateBookingSessionClosed(t *testing.T) {
	svc, settings, _ := newTestService(t, at(9, 5))
	ctx := context.Background()

	require.NoError(t, settings.SetSessionClosed(ctx, schedule.SessionMorning, true))
	_, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	assert.ErrorIs(t, err, ErrBookingClosed)
}

func TestCreateBookingExplicitCloseTime(t *testing.T) {
	svc, settings, _ := newTestService(t, at(12, 30))
	ctx := context.Background()

	s, err := settings.Get(ctx)
	require.NoError(t, err)
	s.Morning.BookingCloseTime = "12:00"
	require.NoError(t, settings.Save(ctx, s))

	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	assert.ErrorIs(t, err, ErrBookingClosed)
}

func TestCreateBookingGuestName(t *testing.T) {
	svc, _, _ := newTestService(t, at(9, 5))

	b, err := svc.CreateBooking(context.Background(), &CreateBookingRequest{MobileNumber: "9876543210", PatientName: "   ", SlotType: "morning"})
	require.NoError(t, err)
	assert.Equal(t, GuestName, b.PatientName)
}

func TestTransitionErrors(t *testing.T) {
	svc, _, pub := newTestService(t, at(9, 5))
	ctx := context.Background()

	a, err := svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkConsulted(ctx, a.ID.String()))

	assert.ErrorIs(t, svc.MarkNoShow(ctx, a.ID.String()), ErrAlreadyFinalized)
	assert.ErrorIs(t, svc.MarkConsulted(ctx, "no-such-id"), ErrBookingNotFound)

	assert.Equal(t, []string{"booking.created", "booking.status_changed"}, pub.events,
		"failed transitions publish nothing")
}

func TestActiveBooking(t *testing.T) {
	svc, _, _ := newTestService(t, at(9, 5))
	ctx := context.Background()

	_, err := svc.ActiveBooking(ctx, "12345")
	assert.ErrorIs(t, err, ErrInvalidMobile)

	_, err = svc.ActiveBooking(ctx, "9876543210")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	require.NoError(t, err)
	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543211", SlotType: "morning"})
	require.NoError(t, err)

	got, err := svc.ActiveBooking(ctx, "98765 432-11")
	require.NoError(t, err)
	assert.Equal(t, 2, got.QueueNumber)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, at(10, 10), got.EstimatedTime)
}

func TestSessionStatus(t *testing.T) {
	svc, _, _ := newTestService(t, at(8, 0))
	ctx := context.Background()

	status, err := svc.Status(ctx, schedule.SessionMorning)
	require.NoError(t, err)
	assert.False(t, status.Open)
	assert.Equal(t, int64(3600), status.OpensInSeconds)
	assert.Equal(t, 0, status.WaitingCount)

	open, _, _ := newTestService(t, at(9, 5))
	_, err = open.CreateBooking(ctx, &CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"})
	require.NoError(t, err)

	status, err = open.Status(ctx, schedule.SessionMorning)
	require.NoError(t, err)
	assert.True(t, status.Open)
	assert.Equal(t, 1, status.WaitingCount)
	assert.Zero(t, status.OpensInSeconds)
	assert.Equal(t, "10:00", status.StartTime)
}
