package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// RefundStatus represents the state of a single refund ledger entry.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund is one append-only entry in a payment's refund ledger.
type Refund struct {
	ID              string       `json:"id"`
	Amount          float64      `json:"amount"`
	Reason          string       `json:"reason,omitempty"`
	GatewayRefundID string       `json:"gateway_refund_id,omitempty"`
	Status          RefundStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Payment is the ledger record for one booking's charge. Amount is
// immutable after creation; refunds accumulate in an ordered ledger and
// may never exceed it. RawPayload keeps the last processor notification
// verbatim for audit.
type Payment struct {
	ID              string
	BookingID       string
	UserID          string
	GatewayIntentID string
	TransactionID   string
	Amount          float64
	Currency        string
	Status          PaymentStatus
	Refunds         []Refund
	ErrorCode       string
	ErrorMessage    string
	RawPayload      []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProcessedAt     *time.Time
}

// NewPayment creates a pending payment for a booking.
func NewPayment(bookingID, userID string, amount float64, currency string) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:        uuid.New().String(),
		BookingID: bookingID,
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Status:    PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AttachIntent records the processor intent id. A retry before
// completion replaces the previous intent rather than creating a
// second payment.
func (p *Payment) AttachIntent(intentID string) error {
	if p.Status != PaymentStatusPending && p.Status != PaymentStatusProcessing && p.Status != PaymentStatusFailed {
		return ErrBookingAlreadyPaid
	}
	p.GatewayIntentID = intentID
	p.Status = PaymentStatusProcessing
	p.ErrorCode = ""
	p.ErrorMessage = ""
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete marks the payment succeeded with the processor transaction id.
func (p *Payment) Complete(transactionID string) error {
	if p.Status != PaymentStatusPending && p.Status != PaymentStatusProcessing && p.Status != PaymentStatusFailed {
		return NewError(KindConflict, "PAYMENT_CLOSED", "payment is already settled", nil)
	}
	now := time.Now().UTC()
	p.Status = PaymentStatusCompleted
	p.TransactionID = transactionID
	p.ErrorCode = ""
	p.ErrorMessage = ""
	p.UpdatedAt = now
	p.ProcessedAt = &now
	return nil
}

// Fail marks the payment failed with the processor's error. Settled
// payments cannot fail.
func (p *Payment) Fail(code, message string) error {
	if p.IsFinal() {
		return NewError(KindConflict, "PAYMENT_CLOSED", "payment is already settled", nil)
	}
	p.Status = PaymentStatusFailed
	p.ErrorCode = code
	p.ErrorMessage = message
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsFinal reports whether the payment reached a terminal state. Failed
// is not terminal: a new intent may retry the charge.
func (p *Payment) IsFinal() bool {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// TotalRefunded sums the succeeded ledger entries.
func (p *Payment) TotalRefunded() float64 {
	var total float64
	for _, r := range p.Refunds {
		if r.Status == RefundStatusSucceeded {
			total += r.Amount
		}
	}
	return total
}

// RemainingAmount is the refundable balance, excluding refunds still
// pending with the processor so concurrent requests cannot oversubscribe.
func (p *Payment) RemainingAmount() float64 {
	remaining := p.Amount
	for _, r := range p.Refunds {
		if r.Status == RefundStatusSucceeded || r.Status == RefundStatusPending {
			remaining -= r.Amount
		}
	}
	return remaining
}

// IsFullyRefunded reports whether the settled refunds cover the full amount.
func (p *Payment) IsFullyRefunded() bool {
	return p.TotalRefunded() >= p.Amount
}

// CanRefund reports whether a refund may be requested.
func (p *Payment) CanRefund() bool {
	if p.Status != PaymentStatusCompleted && p.Status != PaymentStatusRefunded {
		return false
	}
	return p.RemainingAmount() > 0
}

// AddRefund appends a pending refund entry, enforcing the ledger cap.
func (p *Payment) AddRefund(amount float64, reason string) (*Refund, error) {
	if !p.CanRefund() {
		return nil, ErrPaymentNotRefundable
	}
	if amount <= 0 {
		return nil, ValidationError("INVALID_REFUND_AMOUNT", "refund amount must be positive")
	}
	if amount > p.RemainingAmount() {
		return nil, ErrRefundExceedsAmount
	}
	r := Refund{
		ID:        uuid.New().String(),
		Amount:    amount,
		Reason:    reason,
		Status:    RefundStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	p.Refunds = append(p.Refunds, r)
	p.UpdatedAt = r.CreatedAt
	return &p.Refunds[len(p.Refunds)-1], nil
}

// SettleRefund records the processor's answer on a specific ledger
// entry. A pending processor status keeps the entry pending with the
// processor refund id attached, to be settled later by notification.
func (p *Payment) SettleRefund(entryID, gatewayRefundID string, status RefundStatus) bool {
	for i := range p.Refunds {
		if p.Refunds[i].ID != entryID {
			continue
		}
		p.Refunds[i].GatewayRefundID = gatewayRefundID
		if status == RefundStatusSucceeded || status == RefundStatusFailed {
			p.Refunds[i].Status = status
		}
		p.UpdatedAt = time.Now().UTC()
		if p.IsFullyRefunded() {
			p.Status = PaymentStatusRefunded
		}
		return true
	}
	return false
}

// ResolveRefund settles a pending ledger entry. It matches by processor
// refund id first, falling back to the single outstanding pending entry
// when the processor id was never recorded. Returns false when nothing
// matched, which makes replayed notifications no-ops.
func (p *Payment) ResolveRefund(gatewayRefundID string, succeeded bool) bool {
	idx := -1
	for i := range p.Refunds {
		if p.Refunds[i].GatewayRefundID == gatewayRefundID && gatewayRefundID != "" {
			if p.Refunds[i].Status != RefundStatusPending {
				return false
			}
			idx = i
			break
		}
	}
	if idx == -1 {
		for i := range p.Refunds {
			if p.Refunds[i].Status == RefundStatusPending {
				if idx != -1 {
					return false
				}
				idx = i
			}
		}
	}
	if idx == -1 {
		return false
	}
	p.Refunds[idx].GatewayRefundID = gatewayRefundID
	if succeeded {
		p.Refunds[idx].Status = RefundStatusSucceeded
	} else {
		p.Refunds[idx].Status = RefundStatusFailed
	}
	p.UpdatedAt = time.Now().UTC()
	if p.IsFullyRefunded() {
		p.Status = PaymentStatusRefunded
	}
	return true
}
