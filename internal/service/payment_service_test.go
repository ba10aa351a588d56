package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staybook/staybook/internal/domain"
	"github.com/staybook/staybook/internal/gateway"
	"github.com/staybook/staybook/internal/repository"
)

type paymentFixture struct {
	bookingSvc BookingService
	svc        PaymentService
	gateway    *gateway.MockGateway
	payments   *repository.MemoryPaymentRepository
	bookings   *repository.MemoryBookingRepository
	stats      *repository.MemoryUserStatsRepository
	property   *domain.Property
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	properties := repository.NewMemoryPropertyRepository()
	property := &domain.Property{
		ID:          "prop-1",
		HostID:      "host-1",
		NightlyRate: 100,
		Currency:    "usd",
		Fees:        domain.FeeSchedule{CleaningFee: 50, ServiceFeeRate: 0.1, TaxRate: 0.05},
		MaxGuests:   4,
	}
	require.NoError(t, properties.Create(context.Background(), property))

	bookings := repository.NewMemoryBookingRepository(properties)
	payments := repository.NewMemoryPaymentRepository()
	stats := repository.NewMemoryUserStatsRepository()
	gw := gateway.NewMockGateway()

	bookingSvc := NewBookingService(bookings, properties, nil, 0, nil, nil)
	svc := NewPaymentService(payments, bookings, properties, stats, gw, bookingSvc, nil, nil, "usd")

	return &paymentFixture{
		bookingSvc: bookingSvc,
		svc:        svc,
		gateway:    gw,
		payments:   payments,
		bookings:   bookings,
		stats:      stats,
		property:   property,
	}
}

func (f *paymentFixture) book(t *testing.T, guestID string, checkIn, checkOut time.Time) *domain.Booking {
	t.Helper()
	b, err := f.bookingSvc.Create(context.Background(), guestID, CreateBookingInput{
		PropertyID: f.property.ID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Occupancy:  domain.Occupancy{Adults: 2},
	})
	require.NoError(t, err)
	return b
}

// pay runs the full card flow: intent, client-side success, confirm.
func (f *paymentFixture) pay(t *testing.T, b *domain.Booking) *domain.Payment {
	t.Helper()
	ctx := context.Background()

	_, intent, err := f.svc.CreateIntent(ctx, b.ID, b.GuestID)
	require.NoError(t, err)
	f.gateway.SucceedIntent(intent.ID)

	payment, err := f.svc.Confirm(ctx, intent.ID, b.GuestID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	return payment
}

func TestPaymentService_CreateIntent(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	b := f.book(t, "guest-1", day(7), day(10))

	payment, intent, err := f.svc.CreateIntent(ctx, b.ID, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusProcessing, payment.Status)
	assert.Equal(t, b.Pricing.Total, payment.Amount)
	assert.Equal(t, "usd", payment.Currency)
	assert.Equal(t, intent.ID, payment.GatewayIntentID)
	assert.NotEmpty(t, intent.ClientSecret)

	t.Run("only the guest may pay", func(t *testing.T) {
		_, _, err := f.svc.CreateIntent(ctx, b.ID, "host-1")
		assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))
	})

	t.Run("retry replaces the intent on the same payment", func(t *testing.T) {
		payment2, intent2, err := f.svc.CreateIntent(ctx, b.ID, "guest-1")
		require.NoError(t, err)
		assert.Equal(t, payment.ID, payment2.ID)
		assert.NotEqual(t, intent.ID, intent2.ID)
		assert.Equal(t, intent2.ID, payment2.GatewayIntentID)
	})

	t.Run("settled booking is no longer payable", func(t *testing.T) {
		b2 := f.book(t, "guest-1", day(20), day(22))
		f.pay(t, b2)

		_, _, err := f.svc.CreateIntent(ctx, b2.ID, "guest-1")
		assert.ErrorIs(t, err, domain.ErrBookingAlreadyPaid)
	})

	t.Run("cancelled booking is not payable", func(t *testing.T) {
		b3 := f.book(t, "guest-1", day(25), day(27))
		_, err := f.bookingSvc.Cancel(ctx, b3.ID, "guest-1", "")
		require.NoError(t, err)

		_, _, err = f.svc.CreateIntent(ctx, b3.ID, "guest-1")
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	})
}

func TestPaymentService_Confirm(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	b := f.book(t, "guest-1", day(7), day(10))
	_, intent, err := f.svc.CreateIntent(ctx, b.ID, "guest-1")
	require.NoError(t, err)

	// The client claims success but the processor has not settled.
	_, err = f.svc.Confirm(ctx, intent.ID, "guest-1")
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	_, err = f.svc.Confirm(ctx, intent.ID, "stranger")
	assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))

	f.gateway.SucceedIntent(intent.ID)

	payment, err := f.svc.Confirm(ctx, intent.ID, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.NotEmpty(t, payment.TransactionID)

	got, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
	assert.Equal(t, domain.PaymentStatePaid, got.PaymentStatus)

	stats, err := f.stats.Get(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BookingsCompleted)
	assert.Equal(t, payment.Amount, stats.TotalSpent)
}

func TestPaymentService_WebhookAndConfirmConverge(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	b := f.book(t, "guest-1", day(7), day(10))
	_, intent, err := f.svc.CreateIntent(ctx, b.ID, "guest-1")
	require.NoError(t, err)
	f.gateway.SucceedIntent(intent.ID)

	n := IntentNotification{
		IntentID:  intent.ID,
		ChargeID:  "ch_evt_1",
		Amount:    b.Pricing.Total,
		Currency:  "usd",
		BookingID: b.ID,
	}

	require.NoError(t, f.svc.HandleIntentSucceeded(ctx, n))
	// Replays and the racing confirm path are no-ops.
	require.NoError(t, f.svc.HandleIntentSucceeded(ctx, n))
	payment, err := f.svc.Confirm(ctx, intent.ID, "guest-1")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "ch_evt_1", payment.TransactionID)

	// The guest aggregate moved exactly once.
	stats, err := f.stats.Get(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BookingsCompleted)
	assert.Equal(t, payment.Amount, stats.TotalSpent)
}

func TestPaymentService_WebhookRecoversLostPayment(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	t.Run("no local payment row", func(t *testing.T) {
		b := f.book(t, "guest-1", day(7), day(10))

		err := f.svc.HandleIntentSucceeded(ctx, IntentNotification{
			IntentID:  "pi_lost_1",
			ChargeID:  "ch_lost_1",
			Amount:    b.Pricing.Total,
			Currency:  "usd",
			BookingID: b.ID,
		})
		require.NoError(t, err)

		payment, err := f.payments.GetByBookingID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
		assert.Equal(t, "pi_lost_1", payment.GatewayIntentID)
		assert.Equal(t, b.Pricing.Total, payment.Amount)

		got, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatePaid, got.PaymentStatus)
	})

	t.Run("stale intent on the local row", func(t *testing.T) {
		b := f.book(t, "guest-1", day(14), day(16))
		local, _, err := f.svc.CreateIntent(ctx, b.ID, "guest-1")
		require.NoError(t, err)

		// The processor settled an intent the local row never saw.
		err = f.svc.HandleIntentSucceeded(ctx, IntentNotification{
			IntentID:  "pi_other_1",
			ChargeID:  "ch_other_1",
			BookingID: b.ID,
		})
		require.NoError(t, err)

		payment, err := f.payments.GetByID(ctx, local.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
		assert.Equal(t, "pi_other_1", payment.GatewayIntentID)
	})

	t.Run("no booking reference at all", func(t *testing.T) {
		err := f.svc.HandleIntentSucceeded(ctx, IntentNotification{IntentID: "pi_orphan_1"})
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})
}

func TestPaymentService_Refund(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	b := f.book(t, "guest-1", day(7), day(10))
	f.pay(t, b)

	t.Run("unsettled payment cannot refund", func(t *testing.T) {
		b2 := f.book(t, "guest-2", day(20), day(22))
		_, _, err := f.svc.CreateIntent(ctx, b2.ID, "guest-2")
		require.NoError(t, err)

		_, err = f.svc.Refund(ctx, b2.ID, "guest-2", nil, "")
		assert.ErrorIs(t, err, domain.ErrPaymentNotRefundable)
	})

	t.Run("only guest or host may refund", func(t *testing.T) {
		_, err := f.svc.Refund(ctx, b.ID, "stranger", nil, "")
		assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))
	})

	partial := 100.0
	payment, err := f.svc.Refund(ctx, b.ID, "host-1", &partial, "late check-in")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, 100.0, payment.TotalRefunded())
	require.Len(t, payment.Refunds, 1)
	assert.Equal(t, domain.RefundStatusSucceeded, payment.Refunds[0].Status)
	assert.NotEmpty(t, payment.Refunds[0].GatewayRefundID)

	t.Run("refund above the remaining balance is rejected", func(t *testing.T) {
		over := payment.Amount
		_, err := f.svc.Refund(ctx, b.ID, "guest-1", &over, "")
		assert.ErrorIs(t, err, domain.ErrRefundExceedsAmount)
	})

	// Refunding the rest settles the full amount and closes the booking.
	payment, err = f.svc.Refund(ctx, b.ID, "guest-1", nil, "cancelled stay")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, payment.Amount, payment.TotalRefunded())

	got, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusRefunded, got.Status)
	assert.Equal(t, domain.PaymentStateRefunded, got.PaymentStatus)

	t.Run("nothing left to refund", func(t *testing.T) {
		_, err := f.svc.Refund(ctx, b.ID, "guest-1", nil, "")
		assert.ErrorIs(t, err, domain.ErrPaymentNotRefundable)
	})
}

func TestPaymentService_Refund_ProcessorDecline(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	b := f.book(t, "guest-1", day(7), day(10))
	f.pay(t, b)

	f.gateway.FailRefunds = true
	_, err := f.svc.Refund(ctx, b.ID, "guest-1", nil, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	// The declined entry released the balance; a retry succeeds in full.
	f.gateway.FailRefunds = false
	payment, err := f.svc.Refund(ctx, b.ID, "guest-1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, payment.Amount, payment.TotalRefunded())
	require.Len(t, payment.Refunds, 2)
	assert.Equal(t, domain.RefundStatusFailed, payment.Refunds[0].Status)
	assert.Equal(t, domain.RefundStatusSucceeded, payment.Refunds[1].Status)
}

func TestPaymentService_HandleChargeRefunded(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	b := f.book(t, "guest-1", day(7), day(10))
	paid := f.pay(t, b)

	// Seed a refund the processor left pending.
	var entryID string
	_, err := f.payments.Mutate(ctx, paid.ID, func(p *domain.Payment) error {
		entry, err := p.AddRefund(p.Amount, "cancelled stay")
		if err != nil {
			return err
		}
		entryID = entry.ID
		p.SettleRefund(entryID, "re_pending_1", domain.RefundStatusPending)
		return nil
	})
	require.NoError(t, err)

	n := RefundNotification{IntentID: paid.GatewayIntentID, RefundID: "re_pending_1", Amount: paid.Amount}
	require.NoError(t, f.svc.HandleChargeRefunded(ctx, n))

	payment, err := f.payments.GetByID(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, payment.Amount, payment.TotalRefunded())

	got, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusRefunded, got.Status)

	// Replay changes nothing.
	require.NoError(t, f.svc.HandleChargeRefunded(ctx, n))
	payment, err = f.payments.GetByID(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.Amount, payment.TotalRefunded())

	// Unknown intents are acknowledged and dropped.
	require.NoError(t, f.svc.HandleChargeRefunded(ctx, RefundNotification{IntentID: "pi_unknown", RefundID: "re_x"}))
}

func TestPaymentService_HandleIntentFailed(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	b := f.book(t, "guest-1", day(7), day(10))
	_, intent, err := f.svc.CreateIntent(ctx, b.ID, "guest-1")
	require.NoError(t, err)

	err = f.svc.HandleIntentFailed(ctx, IntentNotification{
		IntentID:     intent.ID,
		ErrorCode:    "card_declined",
		ErrorMessage: "Your card was declined.",
	})
	require.NoError(t, err)

	payment, err := f.payments.GetByIntentID(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "card_declined", payment.ErrorCode)

	// A failed charge is retryable.
	retried, intent2, err := f.svc.CreateIntent(ctx, b.ID, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, retried.ID)
	assert.Equal(t, domain.PaymentStatusProcessing, retried.Status)
	assert.NotEqual(t, intent.ID, intent2.ID)

	// Failure for an unknown intent is dropped.
	require.NoError(t, f.svc.HandleIntentFailed(ctx, IntentNotification{IntentID: "pi_unknown"}))
}
