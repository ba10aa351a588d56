package gateway

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeGateway implements PaymentGateway using Stripe
type StripeGateway struct {
	config *StripeGatewayConfig
}

// StripeGatewayConfig holds configuration for Stripe gateway
type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = config.SecretKey

	return &StripeGateway{
		config: config,
	}, nil
}

// minorUnits converts a major-unit amount to the smallest currency unit
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateIntent creates a Stripe PaymentIntent and returns its
// client_secret for frontend confirmation. The metadata carries our ids
// so webhook events can be traced back even if the payment row is lost.
func (g *StripeGateway) CreateIntent(ctx context.Context, req *CreateIntentRequest) (*Intent, error) {
	if req == nil {
		return nil, fmt.Errorf("create intent request is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(req.Amount)),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"payment_id": req.PaymentID,
			"booking_id": req.BookingID,
			"user_id":    req.UserID,
		},
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       req.Amount,
		Currency:     req.Currency,
	}, nil
}

// RetrieveIntent fetches the current state of a PaymentIntent
func (g *StripeGateway) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	if intentID == "" {
		return nil, fmt.Errorf("payment intent ID is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       float64(pi.Amount) / 100,
		Currency:     string(pi.Currency),
	}
	if pi.LatestCharge != nil {
		intent.ChargeID = pi.LatestCharge.ID
	}
	return intent, nil
}

// Refund creates a refund against the intent's charge
func (g *StripeGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error) {
	if req == nil || req.IntentID == "" {
		return nil, fmt.Errorf("payment intent ID is required")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
		Amount:        stripe.Int64(minorUnits(req.Amount)),
	}
	params.Context = ctx
	if req.Reason != "" {
		params.Metadata = map[string]string{"reason": req.Reason}
	}

	re, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}

	return &RefundResult{
		ID:     re.ID,
		Status: string(re.Status),
	}, nil
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}
