package booking

import (
	"context"
	"sort"
	"sync"

	"github.com/opdline/clinic-queue/internal/schedule"
)

// Filter narrows a booking query. Zero values mean "any".
type Filter struct {
	Date     string
	SlotType schedule.Session
	Status   Status
	Mobile   string
}

// Repository is the durable store of bookings. The queue-number sequence of a
// (slot, date) partition is owned by the repository: Insert assigns the next
// number and must serialize concurrent inserts into the same partition.
type Repository interface {
	// Insert assigns the partition's next queue number and persists the
	// booking. The returned booking carries the assigned number.
	Insert(ctx context.Context, b *Booking) (*Booking, error)

	// UpdateStatus transitions a booking from one status to another. It fails
	// with ErrBookingNotFound or ErrAlreadyFinalized when the booking is
	// missing or no longer in the expected state.
	UpdateStatus(ctx context.Context, id string, from, to Status) error

	// GetByID fetches a single booking.
	GetByID(ctx context.Context, id string) (*Booking, error)

	// List returns matching bookings ordered by queue number.
	List(ctx context.Context, f Filter) ([]*Booking, error)

	// ActiveByMobile returns the mobile number's booking for the date with
	// status other than consulted, or ErrBookingNotFound. A no-show booking
	// still counts as active for the already-booked check.
	ActiveByMobile(ctx context.Context, mobile, date string) (*Booking, error)

	// CountWaitingAhead counts waiting bookings in the partition with a queue
	// number strictly below the given one.
	CountWaitingAhead(ctx context.Context, slot schedule.Session, date string, queueNumber int) (int, error)
}

// InMemoryRepository keeps bookings in process memory. Used in tests and in
// demo deployments without a database; the mutex is what serializes queue
// number assignment here.
type InMemoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]*Booking
	ordering map[partitionKey][]*Booking
}

type partitionKey struct {
	slot schedule.Session
	date string
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:     make(map[string]*Booking),
		ordering: make(map[partitionKey][]*Booking),
	}
}

// Insert assigns the next queue number under the lock and stores the booking.
func (r *InMemoryRepository) Insert(ctx context.Context, b *Booking) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := partitionKey{slot: b.SlotType, date: b.BookingDate}
	stored := *b
	stored.QueueNumber = len(r.ordering[key]) + 1

	r.ordering[key] = append(r.ordering[key], &stored)
	r.byID[stored.ID.String()] = &stored

	out := stored
	return &out, nil
}

// UpdateStatus transitions a booking, enforcing the expected current state.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byID[id]
	if !ok {
		return ErrBookingNotFound
	}
	if b.Status != from {
		return ErrAlreadyFinalized
	}
	b.Status = to
	return nil
}

// GetByID returns a copy of the booking.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	out := *b
	return &out, nil
}

// List returns matching bookings ordered by queue number.
func (r *InMemoryRepository) List(ctx context.Context, f Filter) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Booking
	for _, b := range r.byID {
		if !matches(b, f) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookingDate != out[j].BookingDate {
			return out[i].BookingDate < out[j].BookingDate
		}
		if out[i].SlotType != out[j].SlotType {
			return out[i].SlotType < out[j].SlotType
		}
		return out[i].QueueNumber < out[j].QueueNumber
	})
	return out, nil
}

// ActiveByMobile finds the number's non-consulted booking for the date.
func (r *InMemoryRepository) ActiveByMobile(ctx context.Context, mobile, date string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.byID {
		if b.MobileNumber == mobile && b.BookingDate == date && b.Status != StatusConsulted {
			out := *b
			return &out, nil
		}
	}
	return nil, ErrBookingNotFound
}

// CountWaitingAhead counts waiting bookings ahead of the queue number.
func (r *InMemoryRepository) CountWaitingAhead(ctx context.Context, slot schedule.Session, date string, queueNumber int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, b := range r.ordering[partitionKey{slot: slot, date: date}] {
		if b.Status == StatusWaiting && b.QueueNumber < queueNumber {
			count++
		}
	}
	return count, nil
}

func matches(b *Booking, f Filter) bool {
	if f.Date != "" && b.BookingDate != f.Date {
		return false
	}
	if f.SlotType != "" && b.SlotType != f.SlotType {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.Mobile != "" && b.MobileNumber != f.Mobile {
		return false
	}
	return true
}
