// Package notify publishes booking lifecycle events to the messaging
// sink consumed by the notification service. Delivery is best effort:
// a publish failure never fails the triggering operation.
package notify

import (
	"context"
	"time"
)

// Event types published to the sink.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
	EventPaymentCompleted = "payment.completed"
	EventPaymentRefunded  = "payment.refunded"
)

// Event is one booking lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	PropertyID string    `json:"property_id,omitempty"`
	GuestID    string    `json:"guest_id,omitempty"`
	HostID     string    `json:"host_id,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sends events to the messaging sink
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// NoopPublisher discards events; used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (NoopPublisher) Close()                                        {}
