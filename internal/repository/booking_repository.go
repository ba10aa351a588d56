package repository

import (
	"context"
	"time"

	"github.com/staybook/staybook/internal/domain"
)

// BookingRepository defines the interface for booking persistence.
// Guarded mutations (MarkPaid, Cancel) apply their state transition
// atomically in storage so concurrent callers produce exactly one
// winner; the bool result reports whether this call changed anything.
type BookingRepository interface {
	// CreateIfAvailable inserts the booking only if no confirmed booking
	// overlaps its window, checked and inserted in one transaction.
	// Returns domain.ErrDatesUnavailable when the window is taken.
	CreateIfAvailable(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by its ID
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// Update persists the mutable fields of a booking
	Update(ctx context.Context, booking *domain.Booking) error

	// MarkPaid applies a successful payment. Returns false without error
	// when the booking is already paid; returns an error when the
	// booking is cancelled, refunded or completed.
	MarkPaid(ctx context.Context, id, transactionID string, paidAt time.Time) (bool, error)

	// Cancel records the cancellation intent if the booking is still
	// cancelable. Returns false when another caller won the race.
	Cancel(ctx context.Context, id string, c *domain.Cancellation) (bool, error)

	// HasBlockingOverlap reports whether a confirmed booking overlaps
	// the half-open [checkIn, checkOut) window.
	HasBlockingOverlap(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (bool, error)

	// ListByGuest returns the guest's bookings, newest first
	ListByGuest(ctx context.Context, guestID string) ([]*domain.Booking, error)

	// ListByHost returns bookings on the host's properties, newest first
	ListByHost(ctx context.Context, hostID string) ([]*domain.Booking, error)

	// ListPaidByProperty returns the property's paid bookings
	ListPaidByProperty(ctx context.Context, propertyID string) ([]*domain.Booking, error)

	// ListStalePending returns pending unpaid bookings whose check-in
	// has passed, for the expiry sweep.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Booking, error)
}
