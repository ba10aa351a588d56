package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedPayment(t *testing.T, amount float64) *Payment {
	t.Helper()
	p := NewPayment("booking-1", "guest-1", amount, "usd")
	require.NoError(t, p.AttachIntent("pi_123"))
	require.NoError(t, p.Complete("ch_123"))
	return p
}

func TestPaymentAttachIntent(t *testing.T) {
	p := NewPayment("booking-1", "guest-1", 500, "usd")

	require.NoError(t, p.AttachIntent("pi_1"))
	assert.Equal(t, PaymentStatusProcessing, p.Status)
	assert.Equal(t, "pi_1", p.GatewayIntentID)

	// A retry before completion replaces the intent.
	require.NoError(t, p.AttachIntent("pi_2"))
	assert.Equal(t, "pi_2", p.GatewayIntentID)

	// A failed charge can retry with a fresh intent.
	require.NoError(t, p.Fail("card_declined", "Your card was declined."))
	require.NoError(t, p.AttachIntent("pi_3"))
	assert.Equal(t, PaymentStatusProcessing, p.Status)
	assert.Empty(t, p.ErrorCode)

	require.NoError(t, p.Complete("ch_1"))
	assert.ErrorIs(t, p.AttachIntent("pi_4"), ErrBookingAlreadyPaid)
}

func TestPaymentComplete(t *testing.T) {
	p := NewPayment("booking-1", "guest-1", 500, "usd")
	require.NoError(t, p.AttachIntent("pi_1"))

	require.NoError(t, p.Complete("ch_1"))
	assert.Equal(t, PaymentStatusCompleted, p.Status)
	assert.Equal(t, "ch_1", p.TransactionID)
	require.NotNil(t, p.ProcessedAt)
	assert.True(t, p.IsFinal())

	assert.Error(t, p.Complete("ch_2"), "settled payment cannot complete again")
}

func TestPaymentFail(t *testing.T) {
	p := NewPayment("booking-1", "guest-1", 500, "usd")
	require.NoError(t, p.AttachIntent("pi_1"))

	require.NoError(t, p.Fail("card_declined", "Your card was declined."))
	assert.Equal(t, PaymentStatusFailed, p.Status)
	assert.Equal(t, "card_declined", p.ErrorCode)
	assert.False(t, p.IsFinal(), "failed payments may retry")

	require.NoError(t, p.AttachIntent("pi_2"))
	require.NoError(t, p.Complete("ch_1"))
	assert.Error(t, p.Fail("late", "late failure"), "settled payment cannot fail")
}

func TestPaymentRefundLedger(t *testing.T) {
	t.Run("partial then full refund", func(t *testing.T) {
		p := completedPayment(t, 500)

		r1, err := p.AddRefund(200, "first night unusable")
		require.NoError(t, err)
		assert.Equal(t, RefundStatusPending, r1.Status)
		assert.Equal(t, float64(0), p.TotalRefunded(), "pending refunds do not count as settled")
		assert.Equal(t, float64(300), p.RemainingAmount(), "pending refunds reserve the balance")

		r1.GatewayRefundID = "re_1"
		assert.True(t, p.ResolveRefund("re_1", true))
		assert.Equal(t, float64(200), p.TotalRefunded())
		assert.Equal(t, PaymentStatusCompleted, p.Status)
		assert.False(t, p.IsFullyRefunded())

		r2, err := p.AddRefund(300, "")
		require.NoError(t, err)
		r2.GatewayRefundID = "re_2"
		assert.True(t, p.ResolveRefund("re_2", true))

		assert.True(t, p.IsFullyRefunded())
		assert.Equal(t, PaymentStatusRefunded, p.Status)
		assert.False(t, p.CanRefund())
	})

	t.Run("ledger cap", func(t *testing.T) {
		p := completedPayment(t, 500)

		_, err := p.AddRefund(600, "")
		assert.ErrorIs(t, err, ErrRefundExceedsAmount)

		_, err = p.AddRefund(0, "")
		assert.Error(t, err)
		_, err = p.AddRefund(-10, "")
		assert.Error(t, err)

		_, err = p.AddRefund(400, "")
		require.NoError(t, err)
		_, err = p.AddRefund(200, "")
		assert.ErrorIs(t, err, ErrRefundExceedsAmount, "pending entry reserves the balance")
	})

	t.Run("refund before settlement", func(t *testing.T) {
		p := NewPayment("booking-1", "guest-1", 500, "usd")
		_, err := p.AddRefund(100, "")
		assert.ErrorIs(t, err, ErrPaymentNotRefundable)
	})

	t.Run("failed refund releases the balance", func(t *testing.T) {
		p := completedPayment(t, 500)

		_, err := p.AddRefund(500, "")
		require.NoError(t, err)
		assert.True(t, p.ResolveRefund("re_1", false))

		assert.Equal(t, float64(0), p.TotalRefunded())
		assert.Equal(t, float64(500), p.RemainingAmount())
		assert.Equal(t, PaymentStatusCompleted, p.Status)
		assert.True(t, p.CanRefund())
	})
}

func TestPaymentResolveRefund(t *testing.T) {
	t.Run("matches by processor refund id", func(t *testing.T) {
		p := completedPayment(t, 500)
		r, err := p.AddRefund(200, "")
		require.NoError(t, err)
		r.GatewayRefundID = "re_abc"

		assert.True(t, p.ResolveRefund("re_abc", true))
		assert.Equal(t, RefundStatusSucceeded, p.Refunds[0].Status)
	})

	t.Run("falls back to single pending entry", func(t *testing.T) {
		p := completedPayment(t, 500)
		_, err := p.AddRefund(200, "")
		require.NoError(t, err)

		assert.True(t, p.ResolveRefund("re_new", true))
		assert.Equal(t, "re_new", p.Refunds[0].GatewayRefundID)
	})

	t.Run("replay is a no-op", func(t *testing.T) {
		p := completedPayment(t, 500)
		r, err := p.AddRefund(200, "")
		require.NoError(t, err)
		r.GatewayRefundID = "re_abc"

		require.True(t, p.ResolveRefund("re_abc", true))
		assert.False(t, p.ResolveRefund("re_abc", true))
		assert.Equal(t, float64(200), p.TotalRefunded())
	})

	t.Run("unknown id with no pending entry", func(t *testing.T) {
		p := completedPayment(t, 500)
		assert.False(t, p.ResolveRefund("re_unknown", true))
	})

	t.Run("ambiguous pending entries are not guessed", func(t *testing.T) {
		p := completedPayment(t, 500)
		_, err := p.AddRefund(100, "")
		require.NoError(t, err)
		_, err = p.AddRefund(100, "")
		require.NoError(t, err)

		assert.False(t, p.ResolveRefund("re_unmatched", true))
	})
}
