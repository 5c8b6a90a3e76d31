package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opdline/clinic-queue/internal/schedule"
)

// uniqueViolation is the Postgres error code raised when an insert collides
// with the (booking_date, slot_type, queue_number) unique constraint.
const uniqueViolation = "23505"

// maxAssignAttempts bounds the retry loop for queue number assignment.
const maxAssignAttempts = 5

// pgDB defines the database interface needed by PostgresRepository.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores bookings in the relational database. Queue number
// uniqueness is enforced by a DB constraint; concurrent inserts into the same
// partition retry with a freshly computed number until one wins.
type PostgresRepository struct {
	db pgDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db pgDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert assigns the partition's next queue number and persists the booking.
// The number is MAX(queue_number)+1 at insert time; bookings are never
// deleted, so that equals the count of bookings ever created in the
// partition. Losing the race trips the unique constraint and retries.
func (r *PostgresRepository) Insert(ctx context.Context, b *Booking) (*Booking, error) {
	query := `
		INSERT INTO bookings (id, phone, patient_name, slot_type, queue_number, status, booking_date)
		SELECT $1, $2, $3, $4, COALESCE(MAX(queue_number), 0) + 1, $5, $6
		FROM bookings
		WHERE booking_date = $6 AND slot_type = $4
		RETURNING queue_number, created_at
	`
	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		stored := *b
		err := r.db.QueryRow(ctx, query,
			b.ID,
			b.MobileNumber,
			b.PatientName,
			string(b.SlotType),
			string(b.Status),
			b.BookingDate,
		).Scan(&stored.QueueNumber, &stored.CreatedAt)
		if err == nil {
			return &stored, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			continue
		}
		return nil, fmt.Errorf("booking: insert: %w", err)
	}
	return nil, fmt.Errorf("booking: %w after %d attempts", ErrQueueConflict, maxAssignAttempts)
}

// UpdateStatus transitions a booking, guarding on its current status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	query := `UPDATE bookings SET status = $1 WHERE id = $2 AND status = $3`
	ct, err := r.db.Exec(ctx, query, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("booking: update status: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	// Distinguish a missing booking from one already out of the expected state.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyFinalized
}

const bookingColumns = `id, phone, patient_name, slot_type, queue_number, status, booking_date, created_at`

// GetByID fetches a single booking.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: select by id: %w", err)
	}
	return b, nil
}

// List returns matching bookings ordered by queue number.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	var args []any
	idx := 1
	if f.Date != "" {
		query += fmt.Sprintf(" AND booking_date = $%d", idx)
		args = append(args, f.Date)
		idx++
	}
	if f.SlotType != "" {
		query += fmt.Sprintf(" AND slot_type = $%d", idx)
		args = append(args, string(f.SlotType))
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.Mobile != "" {
		query += fmt.Sprintf(" AND phone = $%d", idx)
		args = append(args, f.Mobile)
		idx++
	}
	query += " ORDER BY booking_date, slot_type, queue_number"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("booking: list: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ActiveByMobile finds the number's non-consulted booking for the date.
func (r *PostgresRepository) ActiveByMobile(ctx context.Context, mobile, date string) (*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE phone = $1 AND booking_date = $2 AND status <> 'consulted'
		ORDER BY created_at DESC
		LIMIT 1
	`
	b, err := scanBooking(r.db.QueryRow(ctx, query, mobile, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: select active by mobile: %w", err)
	}
	return b, nil
}

// CountWaitingAhead counts waiting bookings ahead of the queue number.
func (r *PostgresRepository) CountWaitingAhead(ctx context.Context, slot schedule.Session, date string, queueNumber int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE booking_date = $1 AND slot_type = $2 AND status = 'waiting' AND queue_number < $3
	`
	var count int
	if err := r.db.QueryRow(ctx, query, date, string(slot), queueNumber).Scan(&count); err != nil {
		return 0, fmt.Errorf("booking: count waiting ahead: %w", err)
	}
	return count, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b        Booking
		slot     string
		status   string
		date     time.Time
		created  time.Time
		rawPhone string
	)
	if err := row.Scan(&b.ID, &rawPhone, &b.PatientName, &slot, &b.QueueNumber, &status, &date, &created); err != nil {
		return nil, err
	}
	b.MobileNumber = rawPhone
	b.SlotType = schedule.Session(slot)
	b.Status = Status(status)
	b.BookingDate = date.Format("2006-01-02")
	b.CreatedAt = created
	return &b, nil
}
