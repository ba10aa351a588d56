// Package gateway adapts external payment processors behind a single
// interface. Amounts cross this boundary in major units; the minor-unit
// conversion the processor wants happens inside each implementation.
package gateway

import "context"

// CreateIntentRequest asks the processor to prepare a charge.
type CreateIntentRequest struct {
	Amount    float64
	Currency  string
	PaymentID string
	BookingID string
	UserID    string
}

// Intent is the processor-side charge handle.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       float64
	Currency     string
	ChargeID     string
}

// Succeeded reports whether the processor settled the charge.
func (i *Intent) Succeeded() bool {
	return i.Status == "succeeded"
}

// RefundRequest asks the processor to return money against an intent.
type RefundRequest struct {
	IntentID string
	Amount   float64
	Reason   string
}

// RefundResult is the processor's answer to a refund request.
type RefundResult struct {
	ID     string
	Status string
}

// Succeeded reports whether the processor settled the refund. Stripe
// settles most refunds synchronously; pending ones resolve through the
// webhook.
func (r *RefundResult) Succeeded() bool {
	return r.Status == "succeeded"
}

// PaymentGateway defines the interface to the payment processor
type PaymentGateway interface {
	// CreateIntent creates a payment intent for client-side confirmation
	CreateIntent(ctx context.Context, req *CreateIntentRequest) (*Intent, error)

	// RetrieveIntent fetches the current state of an intent
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)

	// Refund returns money against a settled intent
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)

	// Name returns the gateway name for logging
	Name() string
}
