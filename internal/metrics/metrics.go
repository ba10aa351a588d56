// Package metrics exposes Prometheus counters for the booking and
// payment flows, served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	BookingsCreated   prometheus.Counter
	BookingsConfirmed prometheus.Counter
	BookingsCancelled *prometheus.CounterVec
	BookingsCompleted prometheus.Counter
	BookingsExpired   prometheus.Counter

	PaymentsCompleted prometheus.Counter
	PaymentsFailed    prometheus.Counter
	RefundsSettled    prometheus.Counter
	RefundAmount      prometheus.Counter

	WebhookEvents *prometheus.CounterVec
}

// New registers the collectors on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BookingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "staybook_bookings_created_total",
			Help: "Bookings created",
		}),
		BookingsConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "staybook_bookings_confirmed_total",
			Help: "Bookings confirmed by host or payment",
		}),
		BookingsCancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "staybook_bookings_cancelled_total",
			Help: "Bookings cancelled, by actor",
		}, []string{"actor"}),
		BookingsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "staybook_bookings_completed_total",
			Help: "Stays completed",
		}),
		BookingsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "staybook_bookings_expired_total",
			Help: "Stale pending bookings expired by the sweep",
		}),
		PaymentsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "staybook_payments_completed_total",
			Help: "Payments settled successfully",
		}),
		PaymentsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "staybook_payments_failed_total",
			Help: "Payments that failed at the processor",
		}),
		RefundsSettled: factory.NewCounter(prometheus.CounterOpts{
			Name: "staybook_refunds_settled_total",
			Help: "Refund ledger entries settled",
		}),
		RefundAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "staybook_refund_amount_total",
			Help: "Total amount refunded, major units",
		}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "staybook_webhook_events_total",
			Help: "Processor webhook events, by type and result",
		}, []string{"type", "result"}),
	}
}

// NewDefault registers the collectors on the default registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
