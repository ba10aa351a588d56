package domain

import "time"

// UserStats carries the guest-side aggregates updated on payment
// completion. Each successful payment increments the counters exactly
// once, including when the payment record was reconstructed from a
// processor notification.
type UserStats struct {
	UserID            string
	TotalSpent        float64
	BookingsCompleted int
	UpdatedAt         time.Time
}

// RecordCompletedBooking applies one successful payment.
func (s *UserStats) RecordCompletedBooking(amount float64) {
	s.TotalSpent += amount
	s.BookingsCompleted++
	s.UpdatedAt = time.Now().UTC()
}
