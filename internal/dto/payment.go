package dto

import (
	"time"

	"github.com/staybook/staybook/internal/domain"
)

// PaymentIntentResponse is returned from intent creation for the
// frontend card flow
type PaymentIntentResponse struct {
	PaymentID       string  `json:"payment_id"`
	PaymentIntentID string  `json:"payment_intent_id"`
	ClientSecret    string  `json:"client_secret"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
}

// ConfirmPaymentRequest asks the service to verify an intent with the
// processor after client-side completion
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// RefundPaymentRequest represents a refund request. Amount omitted means
// refund the remaining balance.
type RefundPaymentRequest struct {
	Amount *float64 `json:"amount,omitempty" binding:"omitempty,gt=0"`
	Reason string   `json:"reason,omitempty"`
}

// RefundResponse represents one refund ledger entry
type RefundResponse struct {
	ID              string    `json:"id"`
	Amount          float64   `json:"amount"`
	Reason          string    `json:"reason,omitempty"`
	GatewayRefundID string    `json:"gateway_refund_id,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// PaymentResponse represents a payment with its refund ledger
type PaymentResponse struct {
	ID            string           `json:"id"`
	BookingID     string           `json:"booking_id"`
	UserID        string           `json:"user_id"`
	IntentID      string           `json:"payment_intent_id,omitempty"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Amount        float64          `json:"amount"`
	Currency      string           `json:"currency"`
	Status        string           `json:"status"`
	TotalRefunded float64          `json:"total_refunded"`
	Refunds       []RefundResponse `json:"refunds,omitempty"`
	ErrorCode     string           `json:"error_code,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
}

// FromPayment converts a domain Payment to PaymentResponse. The raw
// processor payload stays internal.
func FromPayment(p *domain.Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:            p.ID,
		BookingID:     p.BookingID,
		UserID:        p.UserID,
		IntentID:      p.GatewayIntentID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		TotalRefunded: p.TotalRefunded(),
		ErrorCode:     p.ErrorCode,
		ErrorMessage:  p.ErrorMessage,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		ProcessedAt:   p.ProcessedAt,
	}
	for _, r := range p.Refunds {
		resp.Refunds = append(resp.Refunds, RefundResponse{
			ID:              r.ID,
			Amount:          r.Amount,
			Reason:          r.Reason,
			GatewayRefundID: r.GatewayRefundID,
			Status:          string(r.Status),
			CreatedAt:       r.CreatedAt,
		})
	}
	return resp
}
