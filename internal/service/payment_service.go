package service

import (
	"context"

	"github.com/staybook/staybook/internal/domain"
	"github.com/staybook/staybook/internal/gateway"
)

// PaymentService defines the payment ledger operations. The direct API
// path (CreateIntent, Confirm, Refund) and the processor notification
// path (Handle*) converge on the same guarded transitions, so whichever
// arrives first wins and the other becomes a no-op.
type PaymentService interface {
	// CreateIntent prepares a processor charge for a payable booking and
	// returns the payment with the intent for client-side confirmation.
	// Retrying before settlement replaces the previous intent on the
	// same payment row.
	CreateIntent(ctx context.Context, bookingID, callerID string) (*domain.Payment, *gateway.Intent, error)

	// Confirm verifies the intent with the processor after client-side
	// completion and settles the payment if the processor reports
	// success.
	Confirm(ctx context.Context, intentID, callerID string) (*domain.Payment, error)

	// Refund requests a refund against a settled payment. A nil amount
	// refunds the remaining balance. The ledger entry goes in pending
	// before the processor call and settles from its answer.
	Refund(ctx context.Context, bookingID, callerID string, amount *float64, reason string) (*domain.Payment, error)

	// GetByBookingID returns the booking's payment to its guest or host
	GetByBookingID(ctx context.Context, bookingID, callerID string) (*domain.Payment, error)

	// HandleIntentSucceeded reconciles a processor success notification.
	// Idempotent; reconstructs the payment row from the notification
	// metadata when the local record was lost.
	HandleIntentSucceeded(ctx context.Context, n IntentNotification) error

	// HandleIntentFailed records a processor failure notification
	HandleIntentFailed(ctx context.Context, n IntentNotification) error

	// HandleChargeRefunded settles the matching pending refund ledger
	// entry from a processor refund notification
	HandleChargeRefunded(ctx context.Context, n RefundNotification) error
}

// IntentNotification carries the fields of a processor intent event.
type IntentNotification struct {
	IntentID     string
	ChargeID     string
	Amount       float64
	Currency     string
	BookingID    string
	ErrorCode    string
	ErrorMessage string
	RawPayload   []byte
}

// RefundNotification carries the fields of a processor refund event.
type RefundNotification struct {
	IntentID   string
	RefundID   string
	Amount     float64
	RawPayload []byte
}
