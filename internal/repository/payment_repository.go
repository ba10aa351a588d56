package repository

import (
	"context"

	"github.com/staybook/staybook/internal/domain"
)

// PaymentRepository defines the interface for payment ledger persistence.
// One payment row exists per booking; refunds live inside the row as an
// ordered ledger, so refund mutations run under a per-payment lock.
type PaymentRepository interface {
	// Create persists a new payment. Returns
	// domain.ErrPaymentAlreadyExists when the booking already has one.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by its ID
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByBookingID retrieves the payment for a booking
	GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error)

	// GetByIntentID retrieves a payment by processor intent id
	GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error)

	// Update persists the mutable fields of a payment
	Update(ctx context.Context, payment *domain.Payment) error

	// Complete marks the payment succeeded. Returns false without error
	// when the payment was already completed, so replayed notifications
	// are no-ops; the raw processor payload is retained for audit.
	Complete(ctx context.Context, id, transactionID string, rawPayload []byte) (bool, error)

	// Fail marks the payment failed with the processor's error, unless
	// it already settled.
	Fail(ctx context.Context, id, errorCode, errorMessage string, rawPayload []byte) (bool, error)

	// Mutate loads the payment under a row lock, applies fn and persists
	// the result in the same transaction. Refund ledger changes go
	// through here so the cap holds under concurrency.
	Mutate(ctx context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error)
}

// ErrPaymentAlreadyExists is returned when a second payment row is
// attempted for the same booking.
var ErrPaymentAlreadyExists = domain.NewError(domain.KindConflict, "PAYMENT_ALREADY_EXISTS", "payment already exists for booking", nil)
