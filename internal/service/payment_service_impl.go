package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/staybook/staybook/internal/domain"
	"github.com/staybook/staybook/internal/gateway"
	"github.com/staybook/staybook/internal/logger"
	"github.com/staybook/staybook/internal/metrics"
	"github.com/staybook/staybook/internal/notify"
	"github.com/staybook/staybook/internal/repository"
)

type paymentService struct {
	payments        repository.PaymentRepository
	bookings        repository.BookingRepository
	properties      repository.PropertyRepository
	stats           repository.UserStatsRepository
	gateway         gateway.PaymentGateway
	bookingSvc      BookingService
	publisher       notify.Publisher
	metrics         *metrics.Metrics
	defaultCurrency string
	log             *logger.Logger
}

// NewPaymentService creates the payment service. stats and publisher
// may be nil; metrics may be nil in tests.
func NewPaymentService(
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	properties repository.PropertyRepository,
	stats repository.UserStatsRepository,
	gw gateway.PaymentGateway,
	bookingSvc BookingService,
	publisher notify.Publisher,
	m *metrics.Metrics,
	defaultCurrency string,
) PaymentService {
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	return &paymentService{
		payments:        payments,
		bookings:        bookings,
		properties:      properties,
		stats:           stats,
		gateway:         gw,
		bookingSvc:      bookingSvc,
		publisher:       publisher,
		metrics:         m,
		defaultCurrency: defaultCurrency,
		log:             logger.Get(),
	}
}

func (s *paymentService) CreateIntent(ctx context.Context, bookingID, callerID string) (*domain.Payment, *gateway.Intent, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.GuestID != callerID {
		return nil, nil, domain.AuthorizationError("only the booking's guest may pay for it")
	}
	switch booking.Status {
	case domain.BookingStatusCancelled, domain.BookingStatusRefunded, domain.BookingStatusCompleted:
		return nil, nil, domain.NewError(domain.KindConflict, "BOOKING_CLOSED", "booking is no longer payable", nil)
	}
	if booking.PaymentStatus == domain.PaymentStatePaid {
		return nil, nil, domain.ErrBookingAlreadyPaid
	}

	payment, err := s.getOrCreatePayment(ctx, booking)
	if err != nil {
		return nil, nil, err
	}
	if payment.IsFinal() {
		return nil, nil, domain.ErrBookingAlreadyPaid
	}

	intent, err := s.gateway.CreateIntent(ctx, &gateway.CreateIntentRequest{
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		PaymentID: payment.ID,
		BookingID: payment.BookingID,
		UserID:    payment.UserID,
	})
	if err != nil {
		return nil, nil, domain.ExternalError("PAYMENT_GATEWAY_ERROR", err)
	}

	if err := payment.AttachIntent(intent.ID); err != nil {
		return nil, nil, err
	}
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, nil, err
	}

	s.log.Info("payment intent created",
		zap.String("payment_id", payment.ID),
		zap.String("booking_id", payment.BookingID),
		zap.String("intent_id", intent.ID),
		zap.String("gateway", s.gateway.Name()))

	return payment, intent, nil
}

// getOrCreatePayment returns the booking's payment row, creating it on
// first use. A concurrent first request loses the unique-index race and
// re-reads the winner's row.
func (s *paymentService) getOrCreatePayment(ctx context.Context, booking *domain.Booking) (*domain.Payment, error) {
	payment, err := s.payments.GetByBookingID(ctx, booking.ID)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}

	currency := s.defaultCurrency
	if property, perr := s.properties.GetByID(ctx, booking.PropertyID); perr == nil && property.Currency != "" {
		currency = property.Currency
	}

	payment = domain.NewPayment(booking.ID, booking.GuestID, booking.Pricing.Total, currency)
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return s.payments.GetByBookingID(ctx, booking.ID)
		}
		return nil, err
	}
	return payment, nil
}

func (s *paymentService) Confirm(ctx context.Context, intentID, callerID string) (*domain.Payment, error) {
	payment, err := s.payments.GetByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != callerID {
		return nil, domain.AuthorizationError("only the paying guest may confirm the payment")
	}

	// The processor is the source of truth: never settle on the
	// client's word alone.
	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, domain.ExternalError("PAYMENT_GATEWAY_ERROR", err)
	}
	if !intent.Succeeded() {
		return nil, domain.NewError(domain.KindConflict, "PAYMENT_NOT_SETTLED", fmt.Sprintf("payment intent is %s", intent.Status), nil)
	}

	transactionID := intent.ChargeID
	if transactionID == "" {
		transactionID = intent.ID
	}
	return s.completePayment(ctx, payment.ID, transactionID, nil)
}

// completePayment applies a settled charge exactly once. The guarded
// repository transition decides the winner between the confirm path and
// the notification path; the loser observes changed=false and returns
// the current row.
func (s *paymentService) completePayment(ctx context.Context, paymentID, transactionID string, rawPayload []byte) (*domain.Payment, error) {
	changed, err := s.payments.Complete(ctx, paymentID, transactionID, rawPayload)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return payment, nil
	}

	if _, err := s.bookingSvc.MarkPaid(ctx, payment.BookingID, transactionID, time.Now().UTC()); err != nil {
		// The payment settled; the booking catches up on the next
		// notification replay.
		s.log.Error("payment settled but booking update failed",
			zap.String("payment_id", payment.ID),
			zap.String("booking_id", payment.BookingID),
			zap.Error(err))
	}

	if s.stats != nil {
		if err := s.stats.RecordCompletedBooking(ctx, payment.UserID, payment.Amount); err != nil {
			s.log.Warn("failed to update user stats", zap.String("user_id", payment.UserID), zap.Error(err))
		}
	}

	s.count(func(m *metrics.Metrics) { m.PaymentsCompleted.Inc() })
	s.publish(ctx, notify.Event{
		Type:       notify.EventPaymentCompleted,
		BookingID:  payment.BookingID,
		GuestID:    payment.UserID,
		Amount:     payment.Amount,
		OccurredAt: time.Now().UTC(),
	})

	return payment, nil
}

func (s *paymentService) Refund(ctx context.Context, bookingID, callerID string, amount *float64, reason string) (*domain.Payment, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.GuestID != callerID && booking.HostID != callerID {
		return nil, domain.AuthorizationError("only the booking's guest or host may refund it")
	}

	payment, err := s.payments.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// Phase one: reserve the amount in the ledger under the row lock so
	// concurrent requests cannot oversubscribe the balance.
	var entryID string
	var entryAmount float64
	payment, err = s.payments.Mutate(ctx, payment.ID, func(p *domain.Payment) error {
		want := p.RemainingAmount()
		if amount != nil {
			want = *amount
		}
		entry, err := p.AddRefund(want, reason)
		if err != nil {
			return err
		}
		entryID = entry.ID
		entryAmount = entry.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Phase two: ask the processor, then settle the reserved entry from
	// its answer. A failed call releases the reservation.
	result, gwErr := s.gateway.Refund(ctx, &gateway.RefundRequest{
		IntentID: payment.GatewayIntentID,
		Amount:   entryAmount,
		Reason:   reason,
	})

	status := domain.RefundStatusPending
	refundID := ""
	switch {
	case gwErr != nil:
		status = domain.RefundStatusFailed
	case result.Status == "failed":
		status = domain.RefundStatusFailed
		refundID = result.ID
	case result.Succeeded():
		status = domain.RefundStatusSucceeded
		refundID = result.ID
	default:
		// Pending at the processor; the notification settles it later.
		refundID = result.ID
	}

	payment, err = s.payments.Mutate(ctx, payment.ID, func(p *domain.Payment) error {
		p.SettleRefund(entryID, refundID, status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if gwErr != nil {
		return nil, domain.ExternalError("REFUND_FAILED", gwErr)
	}
	if status == domain.RefundStatusFailed {
		return nil, domain.NewError(domain.KindConflict, "REFUND_FAILED", "payment processor declined the refund", nil)
	}

	if status == domain.RefundStatusSucceeded {
		s.settledRefund(ctx, payment, entryAmount)
	}

	return payment, nil
}

func (s *paymentService) GetByBookingID(ctx context.Context, bookingID, callerID string) (*domain.Payment, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.GuestID != callerID && booking.HostID != callerID {
		return nil, domain.AuthorizationError("only the booking's guest or host may view its payment")
	}
	return s.payments.GetByBookingID(ctx, bookingID)
}

func (s *paymentService) HandleIntentSucceeded(ctx context.Context, n IntentNotification) error {
	payment, err := s.payments.GetByIntentID(ctx, n.IntentID)
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			return err
		}
		payment, err = s.recoverPayment(ctx, n)
		if err != nil {
			return err
		}
	}

	transactionID := n.ChargeID
	if transactionID == "" {
		transactionID = n.IntentID
	}
	_, err = s.completePayment(ctx, payment.ID, transactionID, n.RawPayload)
	return err
}

// recoverPayment rebuilds the payment row for a charge the processor
// settled but the local store never saw, from the notification metadata.
func (s *paymentService) recoverPayment(ctx context.Context, n IntentNotification) (*domain.Payment, error) {
	if n.BookingID == "" {
		return nil, domain.NewError(domain.KindNotFound, "UNKNOWN_INTENT", "no payment matches the notification intent", nil)
	}

	payment, err := s.payments.GetByBookingID(ctx, n.BookingID)
	if err == nil {
		// The row exists but carries a stale intent from a retried
		// attempt; adopt the intent that actually settled.
		payment, err = s.payments.Mutate(ctx, payment.ID, func(p *domain.Payment) error {
			if p.IsFinal() {
				return nil
			}
			return p.AttachIntent(n.IntentID)
		})
		return payment, err
	}
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}

	booking, err := s.bookings.GetByID(ctx, n.BookingID)
	if err != nil {
		return nil, err
	}

	amount := n.Amount
	if amount == 0 {
		amount = booking.Pricing.Total
	}
	currency := n.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	payment = domain.NewPayment(booking.ID, booking.GuestID, amount, currency)
	if err := payment.AttachIntent(n.IntentID); err != nil {
		return nil, err
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return s.payments.GetByBookingID(ctx, booking.ID)
		}
		return nil, err
	}

	s.log.Warn("reconstructed payment from processor notification",
		zap.String("payment_id", payment.ID),
		zap.String("booking_id", booking.ID),
		zap.String("intent_id", n.IntentID))

	return payment, nil
}

func (s *paymentService) HandleIntentFailed(ctx context.Context, n IntentNotification) error {
	payment, err := s.payments.GetByIntentID(ctx, n.IntentID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			s.log.Warn("failure notification for unknown intent", zap.String("intent_id", n.IntentID))
			return nil
		}
		return err
	}

	changed, err := s.payments.Fail(ctx, payment.ID, n.ErrorCode, n.ErrorMessage, n.RawPayload)
	if err != nil {
		return err
	}
	if changed {
		s.count(func(m *metrics.Metrics) { m.PaymentsFailed.Inc() })
	}
	return nil
}

func (s *paymentService) HandleChargeRefunded(ctx context.Context, n RefundNotification) error {
	payment, err := s.payments.GetByIntentID(ctx, n.IntentID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			s.log.Warn("refund notification for unknown intent", zap.String("intent_id", n.IntentID))
			return nil
		}
		return err
	}

	var settled bool
	var settledAmount float64
	payment, err = s.payments.Mutate(ctx, payment.ID, func(p *domain.Payment) error {
		if !p.ResolveRefund(n.RefundID, true) {
			return nil
		}
		settled = true
		for _, r := range p.Refunds {
			if r.GatewayRefundID == n.RefundID {
				settledAmount = r.Amount
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !settled {
		// Replayed or already-settled notification.
		return nil
	}

	s.settledRefund(ctx, payment, settledAmount)
	return nil
}

// settledRefund records a settled refund entry and finalizes the full
// refund path on the booking.
func (s *paymentService) settledRefund(ctx context.Context, payment *domain.Payment, amount float64) {
	s.count(func(m *metrics.Metrics) {
		m.RefundsSettled.Inc()
		m.RefundAmount.Add(amount)
	})

	if payment.Status == domain.PaymentStatusRefunded {
		if err := s.bookingSvc.MarkRefunded(ctx, payment.BookingID); err != nil {
			s.log.Error("payment fully refunded but booking update failed",
				zap.String("payment_id", payment.ID),
				zap.String("booking_id", payment.BookingID),
				zap.Error(err))
		}
	}

	s.publish(ctx, notify.Event{
		Type:       notify.EventPaymentRefunded,
		BookingID:  payment.BookingID,
		GuestID:    payment.UserID,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *paymentService) count(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

func (s *paymentService) publish(ctx context.Context, event notify.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn(fmt.Sprintf("failed to publish %s event", event.Type), zap.String("booking_id", event.BookingID), zap.Error(err))
	}
}
