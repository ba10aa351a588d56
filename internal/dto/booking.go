package dto

import (
	"time"

	"github.com/staybook/staybook/internal/domain"
)

// CreateBookingRequest represents a request to book a property
type CreateBookingRequest struct {
	PropertyID string    `json:"property_id" binding:"required"`
	CheckIn    time.Time `json:"check_in" binding:"required"`
	CheckOut   time.Time `json:"check_out" binding:"required"`
	Adults     int       `json:"adults" binding:"required,min=1"`
	Children   int       `json:"children" binding:"min=0"`
	Infants    int       `json:"infants" binding:"min=0"`
	Pets       int       `json:"pets" binding:"min=0"`
}

// Occupancy converts the request guest counts
func (r *CreateBookingRequest) Occupancy() domain.Occupancy {
	return domain.Occupancy{
		Adults:   r.Adults,
		Children: r.Children,
		Infants:  r.Infants,
		Pets:     r.Pets,
	}
}

// CancelBookingRequest represents a cancellation request
type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancellationResponse represents the cancellation record on a booking
type CancellationResponse struct {
	CancelledBy  string    `json:"cancelled_by"`
	CancelledAt  time.Time `json:"cancelled_at"`
	Reason       string    `json:"reason,omitempty"`
	RefundAmount float64   `json:"refund_amount"`
	RefundStatus string    `json:"refund_status"`
}

// BookingResponse represents a booking
type BookingResponse struct {
	ID            string                `json:"id"`
	PropertyID    string                `json:"property_id"`
	GuestID       string                `json:"guest_id"`
	HostID        string                `json:"host_id"`
	CheckIn       time.Time             `json:"check_in"`
	CheckOut      time.Time             `json:"check_out"`
	Occupancy     domain.Occupancy      `json:"occupancy"`
	Pricing       domain.PriceBreakdown `json:"pricing"`
	Status        string                `json:"status"`
	Active        bool                  `json:"active"`
	PaymentStatus string                `json:"payment_status"`
	TransactionID string                `json:"transaction_id,omitempty"`
	PaidAt        *time.Time            `json:"paid_at,omitempty"`
	Cancellation  *CancellationResponse `json:"cancellation,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// FromBooking converts a domain Booking to BookingResponse. The derived
// active flag is computed against the current time.
func FromBooking(b *domain.Booking) *BookingResponse {
	resp := &BookingResponse{
		ID:            b.ID,
		PropertyID:    b.PropertyID,
		GuestID:       b.GuestID,
		HostID:        b.HostID,
		CheckIn:       b.CheckIn,
		CheckOut:      b.CheckOut,
		Occupancy:     b.Occupancy,
		Pricing:       b.Pricing,
		Status:        string(b.Status),
		Active:        b.IsActiveAt(time.Now().UTC()),
		PaymentStatus: string(b.PaymentStatus),
		TransactionID: b.TransactionID,
		PaidAt:        b.PaidAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if c := b.Cancellation; c != nil {
		resp.Cancellation = &CancellationResponse{
			CancelledBy:  string(c.CancelledBy),
			CancelledAt:  c.CancelledAt,
			Reason:       c.Reason,
			RefundAmount: c.RefundAmount,
			RefundStatus: string(c.RefundStatus),
		}
	}
	return resp
}

// FromBookings converts a list of bookings
func FromBookings(bookings []*domain.Booking) []*BookingResponse {
	out := make([]*BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, FromBooking(b))
	}
	return out
}

// PaidDatesResponse lists the UTC days blocked by paid bookings
type PaidDatesResponse struct {
	PropertyID string   `json:"property_id"`
	Dates      []string `json:"dates"`
}
