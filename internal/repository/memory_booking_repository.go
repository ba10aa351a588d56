package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/staybook/staybook/internal/domain"
)

// MemoryBookingRepository is an in-memory BookingRepository for tests
// and local development. A single mutex gives it the same one-winner
// semantics the postgres implementation gets from guarded updates.
type MemoryBookingRepository struct {
	mu         sync.Mutex
	bookings   map[string]*domain.Booking
	properties PropertyRepository
}

// NewMemoryBookingRepository creates an in-memory booking repository.
// The property repository is consulted during CreateIfAvailable; pass
// nil to skip the existence check.
func NewMemoryBookingRepository(properties PropertyRepository) *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings:   make(map[string]*domain.Booking),
		properties: properties,
	}
}

func (r *MemoryBookingRepository) CreateIfAvailable(ctx context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.properties != nil {
		if _, err := r.properties.GetByID(ctx, b.PropertyID); err != nil {
			return err
		}
	}
	for _, existing := range r.bookings {
		if existing.PropertyID == b.PropertyID && existing.Blocks() && existing.Overlaps(b.CheckIn, b.CheckOut) {
			return domain.ErrDatesUnavailable
		}
	}

	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

func (r *MemoryBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *MemoryBookingRepository) get(id string) (*domain.Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	cp := *b
	if b.Cancellation != nil {
		c := *b.Cancellation
		cp.Cancellation = &c
	}
	return &cp, nil
}

func (r *MemoryBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[b.ID]; !ok {
		return domain.ErrBookingNotFound
	}
	cp := *b
	if b.Cancellation != nil {
		c := *b.Cancellation
		cp.Cancellation = &c
	}
	r.bookings[b.ID] = &cp
	return nil
}

func (r *MemoryBookingRepository) MarkPaid(ctx context.Context, id, transactionID string, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return false, domain.ErrBookingNotFound
	}
	return b.MarkPaid(transactionID, paidAt)
}

func (r *MemoryBookingRepository) Cancel(ctx context.Context, id string, c *domain.Cancellation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return false, domain.ErrBookingNotFound
	}
	if !b.CanCancel() {
		return false, domain.ErrBookingNotCancelable
	}
	b.Status = domain.BookingStatusCancelled
	cc := *c
	b.Cancellation = &cc
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryBookingRepository) HasBlockingOverlap(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bookings {
		if b.PropertyID == propertyID && b.Blocks() && b.Overlaps(checkIn, checkOut) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryBookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool { return b.GuestID == guestID }), nil
}

func (r *MemoryBookingRepository) ListByHost(ctx context.Context, hostID string) ([]*domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool { return b.HostID == hostID }), nil
}

func (r *MemoryBookingRepository) ListPaidByProperty(ctx context.Context, propertyID string) ([]*domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool {
		return b.PropertyID == propertyID && b.PaymentStatus == domain.PaymentStatePaid
	}), nil
}

func (r *MemoryBookingRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Booking, error) {
	out := r.list(func(b *domain.Booking) bool {
		return b.Status == domain.BookingStatusPending &&
			b.PaymentStatus == domain.PaymentStatePending &&
			b.CheckIn.Before(before)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryBookingRepository) list(match func(*domain.Booking) bool) []*domain.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Booking
	for id, b := range r.bookings {
		if match(b) {
			cp, _ := r.get(id)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
