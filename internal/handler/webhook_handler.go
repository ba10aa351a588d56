package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/staybook/staybook/internal/logger"
	"github.com/staybook/staybook/internal/metrics"
	"github.com/staybook/staybook/internal/service"
)

// WebhookHandler receives Stripe webhook events. The signature check
// runs before anything else touches state; after that every event is
// acknowledged with 200 so the processor stops retrying, and the
// reconciliation itself is idempotent.
type WebhookHandler struct {
	paymentService service.PaymentService
	webhookSecret  string
	metrics        *metrics.Metrics
	log            *logger.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(paymentService service.PaymentService, webhookSecret string, m *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
		webhookSecret:  webhookSecret,
		metrics:        m,
		log:            logger.Get(),
	}
}

// Handle handles POST /payments/webhook
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		h.log.Warn("webhook request without Stripe-Signature header")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing Stripe-Signature header"})
		return
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		h.log.Error("webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	h.log.Info("received webhook event", zap.String("type", string(event.Type)), zap.String("event_id", event.ID))

	var handleErr error
	switch event.Type {
	case "payment_intent.succeeded":
		handleErr = h.intentSucceeded(c, event)
	case "payment_intent.payment_failed":
		handleErr = h.intentFailed(c, event)
	case "charge.refunded":
		handleErr = h.chargeRefunded(c, event)
	default:
		h.count(string(event.Type), "ignored")
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "event type not handled"})
		return
	}

	result := "ok"
	if handleErr != nil {
		// Acknowledge anyway: the reconciliation is idempotent and the
		// state converges on the next related event or API call.
		result = "error"
		h.log.Error("webhook reconciliation failed",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(handleErr))
	}
	h.count(string(event.Type), result)

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) intentSucceeded(c *gin.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return err
	}

	n := service.IntentNotification{
		IntentID:   intent.ID,
		Amount:     float64(intent.Amount) / 100,
		Currency:   string(intent.Currency),
		BookingID:  intent.Metadata["booking_id"],
		RawPayload: event.Data.Raw,
	}
	if intent.LatestCharge != nil {
		n.ChargeID = intent.LatestCharge.ID
	}

	return h.paymentService.HandleIntentSucceeded(c.Request.Context(), n)
}

func (h *WebhookHandler) intentFailed(c *gin.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return err
	}

	n := service.IntentNotification{
		IntentID:     intent.ID,
		BookingID:    intent.Metadata["booking_id"],
		ErrorCode:    "payment_failed",
		ErrorMessage: "payment failed",
		RawPayload:   event.Data.Raw,
	}
	if intent.LastPaymentError != nil {
		if intent.LastPaymentError.Code != "" {
			n.ErrorCode = string(intent.LastPaymentError.Code)
		}
		if intent.LastPaymentError.Msg != "" {
			n.ErrorMessage = intent.LastPaymentError.Msg
		}
	}

	return h.paymentService.HandleIntentFailed(c.Request.Context(), n)
}

func (h *WebhookHandler) chargeRefunded(c *gin.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return err
	}

	n := service.RefundNotification{
		Amount:     float64(charge.AmountRefunded) / 100,
		RawPayload: event.Data.Raw,
	}
	if charge.PaymentIntent != nil {
		n.IntentID = charge.PaymentIntent.ID
	}
	// The most recent refund comes first in the charge's refund list.
	if charge.Refunds != nil && len(charge.Refunds.Data) > 0 {
		n.RefundID = charge.Refunds.Data[0].ID
		n.Amount = float64(charge.Refunds.Data[0].Amount) / 100
	}

	return h.paymentService.HandleChargeRefunded(c.Request.Context(), n)
}

func (h *WebhookHandler) count(eventType, result string) {
	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(eventType, result).Inc()
	}
}
