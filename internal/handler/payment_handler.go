package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/staybook/staybook/internal/dto"
	"github.com/staybook/staybook/internal/middleware"
	"github.com/staybook/staybook/internal/response"
	"github.com/staybook/staybook/internal/service"
)

// PaymentHandler handles payment HTTP endpoints
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreateIntent handles POST /bookings/:id/payment-intent
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	payment, intent, err := h.paymentService.CreateIntent(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Created(c, dto.PaymentIntentResponse{
		PaymentID:       payment.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          payment.Amount,
		Currency:        payment.Currency,
	})
}

// Confirm handles POST /payments/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.Confirm(c.Request.Context(), req.PaymentIntentID, userID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.FromPayment(payment))
}

// Refund handles POST /bookings/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req dto.RefundPaymentRequest
	// Body is optional; an empty body refunds the remaining balance.
	_ = c.ShouldBindJSON(&req)

	payment, err := h.paymentService.Refund(c.Request.Context(), c.Param("id"), userID, req.Amount, req.Reason)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.FromPayment(payment))
}

// GetByBooking handles GET /bookings/:id/payment
func (h *PaymentHandler) GetByBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	payment, err := h.paymentService.GetByBookingID(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.FromPayment(payment))
}
