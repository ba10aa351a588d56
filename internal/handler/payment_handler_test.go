package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// payBooking runs the full card flow over the API: intent, client-side
// success against the mock processor, confirm.
func payBooking(t *testing.T, f *apiFixture, bookingID, userID string) map[string]interface{} {
	t.Helper()

	created := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/payment-intent", userID, nil)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	intentID := dataMap(t, created)["payment_intent_id"].(string)

	f.gateway.SucceedIntent(intentID)

	confirmed := f.do(t, "POST", "/api/v1/payments/confirm", userID, map[string]interface{}{
		"payment_intent_id": intentID,
	})
	require.Equal(t, http.StatusOK, confirmed.Code, confirmed.Body.String())
	return dataMap(t, confirmed)
}

func TestPaymentHandler_CreateIntent(t *testing.T) {
	f := newAPIFixture(t)

	created := f.do(t, "POST", "/api/v1/bookings", "guest-1", bookingRequest(futureDay(10), futureDay(13)))
	require.Equal(t, http.StatusCreated, created.Code)
	bookingID := dataMap(t, created)["id"].(string)

	w := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/payment-intent", "guest-1", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := dataMap(t, w)
	assert.NotEmpty(t, data["payment_id"])
	assert.NotEmpty(t, data["payment_intent_id"])
	assert.NotEmpty(t, data["client_secret"])
	assert.Equal(t, float64(395), data["amount"])
	assert.Equal(t, "usd", data["currency"])
}

func TestPaymentHandler_CreateIntent_StrangerForbidden(t *testing.T) {
	f := newAPIFixture(t)

	created := f.do(t, "POST", "/api/v1/bookings", "guest-1", bookingRequest(futureDay(10), futureDay(13)))
	require.Equal(t, http.StatusCreated, created.Code)
	bookingID := dataMap(t, created)["id"].(string)

	w := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/payment-intent", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPaymentHandler_Confirm(t *testing.T) {
	f := newAPIFixture(t)

	created := f.do(t, "POST", "/api/v1/bookings", "guest-1", bookingRequest(futureDay(10), futureDay(13)))
	require.Equal(t, http.StatusCreated, created.Code)
	bookingID := dataMap(t, created)["id"].(string)

	payment := payBooking(t, f, bookingID, "guest-1")
	assert.Equal(t, "completed", payment["status"])
	assert.NotEmpty(t, payment["transaction_id"])

	booking := f.do(t, "GET", "/api/v1/bookings/"+bookingID, "guest-1", nil)
	require.Equal(t, http.StatusOK, booking.Code)
	data := dataMap(t, booking)
	assert.Equal(t, "confirmed", data["status"])
	assert.Equal(t, "paid", data["payment_status"])
}

func TestPaymentHandler_Confirm_BeforeClientSettles(t *testing.T) {
	f := newAPIFixture(t)

	created := f.do(t, "POST", "/api/v1/bookings", "guest-1", bookingRequest(futureDay(10), futureDay(13)))
	require.Equal(t, http.StatusCreated, created.Code)
	bookingID := dataMap(t, created)["id"].(string)

	intent := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/payment-intent", "guest-1", nil)
	require.Equal(t, http.StatusCreated, intent.Code)
	intentID := dataMap(t, intent)["payment_intent_id"].(string)

	// Confirm without the card flow completing at the processor.
	w := f.do(t, "POST", "/api/v1/payments/confirm", "guest-1", map[string]interface{}{
		"payment_intent_id": intentID,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, "PAYMENT_NOT_SETTLED", resp.Error.Code)
}

func TestPaymentHandler_Confirm_ValidationError(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/payments/confirm", "guest-1", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_Refund(t *testing.T) {
	f := newAPIFixture(t)

	created := f.do(t, "POST", "/api/v1/bookings", "guest-1", bookingRequest(futureDay(10), futureDay(13)))
	require.Equal(t, http.StatusCreated, created.Code)
	bookingID := dataMap(t, created)["id"].(string)
	payBooking(t, f, bookingID, "guest-1")

	partial := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/refund", "guest-1", map[string]interface{}{
		"amount": 100.0,
		"reason": "late check-in",
	})
	require.Equal(t, http.StatusOK, partial.Code, partial.Body.String())

	data := dataMap(t, partial)
	assert.Equal(t, float64(100), data["total_refunded"])
	assert.Equal(t, "completed", data["status"])

	rest := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/refund", "guest-1", nil)
	require.Equal(t, http.StatusOK, rest.Code, rest.Body.String())

	data = dataMap(t, rest)
	assert.Equal(t, float64(395), data["total_refunded"])
	assert.Equal(t, "refunded", data["status"])
}

func TestPaymentHandler_Refund_Unpaid(t *testing.T) {
	f := newAPIFixture(t)

	created := f.do(t, "POST", "/api/v1/bookings", "guest-1", bookingRequest(futureDay(10), futureDay(13)))
	require.Equal(t, http.StatusCreated, created.Code)
	bookingID := dataMap(t, created)["id"].(string)

	// No payment row yet, so there is nothing to refund.
	w := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/refund", "guest-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// An intent that never settled cannot be refunded either.
	intent := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/payment-intent", "guest-1", nil)
	require.Equal(t, http.StatusCreated, intent.Code)
	unsettled := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/refund", "guest-1", nil)
	assert.Equal(t, http.StatusConflict, unsettled.Code)
}

func TestPaymentHandler_Refund_NegativeAmountRejected(t *testing.T) {
	f := newAPIFixture(t)

	created := f.do(t, "POST", "/api/v1/bookings", "guest-1", bookingRequest(futureDay(10), futureDay(13)))
	require.Equal(t, http.StatusCreated, created.Code)
	bookingID := dataMap(t, created)["id"].(string)
	payBooking(t, f, bookingID, "guest-1")

	w := f.do(t, "POST", "/api/v1/bookings/"+bookingID+"/refund", "guest-1", map[string]interface{}{
		"amount": -50.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_GetByBooking(t *testing.T) {
	f := newAPIFixture(t)

	created := f.do(t, "POST", "/api/v1/bookings", "guest-1", bookingRequest(futureDay(10), futureDay(13)))
	require.Equal(t, http.StatusCreated, created.Code)
	bookingID := dataMap(t, created)["id"].(string)
	payBooking(t, f, bookingID, "guest-1")

	w := f.do(t, "GET", "/api/v1/bookings/"+bookingID+"/payment", "guest-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := dataMap(t, w)
	assert.Equal(t, bookingID, data["booking_id"])
	assert.Equal(t, "completed", data["status"])

	host := f.do(t, "GET", "/api/v1/bookings/"+bookingID+"/payment", "host-1", nil)
	assert.Equal(t, http.StatusOK, host.Code)

	stranger := f.do(t, "GET", "/api/v1/bookings/"+bookingID+"/payment", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, stranger.Code)
}

func TestPaymentHandler_GetByBooking_NoPayment(t *testing.T) {
	f := newAPIFixture(t)

	created := f.do(t, "POST", "/api/v1/bookings", "guest-1", bookingRequest(futureDay(10), futureDay(13)))
	require.Equal(t, http.StatusCreated, created.Code)
	bookingID := dataMap(t, created)["id"].(string)

	w := f.do(t, "GET", "/api/v1/bookings/"+bookingID+"/payment", "guest-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
