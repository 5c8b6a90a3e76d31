package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opdline/clinic-queue/internal/schedule"
)

func bookingRow(b *Booking) *pgxmock.Rows {
	date, _ := time.Parse("2006-01-02", b.BookingDate)
	return pgxmock.NewRows([]string{
		"id", "phone", "patient_name", "slot_type", "queue_number", "status", "booking_date", "created_at",
	}).AddRow(
		b.ID, b.MobileNumber, b.PatientName, string(b.SlotType), b.QueueNumber, string(b.Status), date, b.CreatedAt,
	)
}

func TestPostgresInsertAssignsNumber(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := newTestBooking("9876543210", schedule.SessionMorning, "2026-03-02")
	created := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(b.ID, b.MobileNumber, b.PatientName, "morning", "waiting", "2026-03-02").
		WillReturnRows(pgxmock.NewRows([]string{"queue_number", "created_at"}).AddRow(1, created))

	repo := NewPostgresRepositoryWithDB(mock)
	got, err := repo.Insert(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QueueNumber)
	assert.Equal(t, created, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertRetriesOnUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := newTestBooking("9876543210", schedule.SessionMorning, "2026-03-02")
	created := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	// Losing the race trips the unique constraint once, then wins with the
	// freshly computed number.
	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"queue_number", "created_at"}).AddRow(3, created))

	repo := NewPostgresRepositoryWithDB(mock)
	got, err := repo.Insert(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 3, got.QueueNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertGivesUpAfterMaxAttempts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for i := 0; i < maxAssignAttempts; i++ {
		mock.ExpectQuery(`INSERT INTO bookings`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505"})
	}

	repo := NewPostgresRepositoryWithDB(mock)
	_, err = repo.Insert(context.Background(), newTestBooking("9876543210", schedule.SessionMorning, "2026-03-02"))
	assert.ErrorIs(t, err, ErrQueueConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.NewString()
	mock.ExpectExec(`UPDATE bookings SET status = \$1 WHERE id = \$2 AND status = \$3`).
		WithArgs("consulted", id, "waiting").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPostgresRepositoryWithDB(mock)
	require.NoError(t, repo.UpdateStatus(context.Background(), id, StatusWaiting, StatusConsulted))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatusAlreadyFinalized(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := newTestBooking("9876543210", schedule.SessionMorning, "2026-03-02")
	b.Status = StatusConsulted
	b.QueueNumber = 1

	mock.ExpectExec(`UPDATE bookings SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE id = \$1`).
		WithArgs(b.ID.String()).
		WillReturnRows(bookingRow(b))

	repo := NewPostgresRepositoryWithDB(mock)
	err = repo.UpdateStatus(context.Background(), b.ID.String(), StatusWaiting, StatusNoShow)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.NewString()
	mock.ExpectExec(`UPDATE bookings SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepositoryWithDB(mock)
	err = repo.UpdateStatus(context.Background(), id, StatusWaiting, StatusConsulted)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := newTestBooking("9876543210", schedule.SessionMorning, "2026-03-02")
	a.QueueNumber = 1
	b := newTestBooking("9876543211", schedule.SessionMorning, "2026-03-02")
	b.QueueNumber = 2

	date, _ := time.Parse("2006-01-02", "2026-03-02")
	rows := pgxmock.NewRows([]string{
		"id", "phone", "patient_name", "slot_type", "queue_number", "status", "booking_date", "created_at",
	}).
		AddRow(a.ID, a.MobileNumber, a.PatientName, "morning", 1, "waiting", date, a.CreatedAt).
		AddRow(b.ID, b.MobileNumber, b.PatientName, "morning", 2, "waiting", date, b.CreatedAt)

	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE 1=1 AND booking_date = \$1 AND slot_type = \$2 ORDER BY`).
		WithArgs("2026-03-02", "morning").
		WillReturnRows(rows)

	repo := NewPostgresRepositoryWithDB(mock)
	got, err := repo.List(context.Background(), Filter{Date: "2026-03-02", SlotType: schedule.SessionMorning})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].QueueNumber)
	assert.Equal(t, "2026-03-02", got[0].BookingDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresActiveByMobileNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`WHERE phone = \$1 AND booking_date = \$2 AND status <> 'consulted'`).
		WithArgs("9876543210", "2026-03-02").
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepositoryWithDB(mock)
	_, err = repo.ActiveByMobile(context.Background(), "9876543210", "2026-03-02")
	assert.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountWaitingAhead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM bookings\s+WHERE booking_date = \$1 AND slot_type = \$2 AND status = 'waiting' AND queue_number < \$3`).
		WithArgs("2026-03-02", "morning", 4).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	repo := NewPostgresRepositoryWithDB(mock)
	got, err := repo.CountWaitingAhead(context.Background(), schedule.SessionMorning, "2026-03-02", 4)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
