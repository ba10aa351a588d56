// Package handler wires the HTTP surface to the services. Handlers
// translate between transport and domain; all business rules live in
// the service layer.
package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staybook/staybook/internal/dto"
	"github.com/staybook/staybook/internal/middleware"
	"github.com/staybook/staybook/internal/response"
	"github.com/staybook/staybook/internal/service"
)

// BookingHandler handles booking HTTP endpoints
type BookingHandler struct {
	bookingService service.BookingService
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// Create handles POST /bookings
func (h *BookingHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	booking, err := h.bookingService.Create(c.Request.Context(), userID, service.CreateBookingInput{
		PropertyID: req.PropertyID,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Occupancy:  req.Occupancy(),
	})
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Created(c, dto.FromBooking(booking))
}

// Get handles GET /bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	booking, err := h.bookingService.GetByID(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.FromBooking(booking))
}

// ListMine handles GET /bookings (the caller's bookings as guest)
func (h *BookingHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	bookings, err := h.bookingService.ListForGuest(c.Request.Context(), userID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.FromBookings(bookings))
}

// ListHosted handles GET /host/bookings (bookings on the caller's properties)
func (h *BookingHandler) ListHosted(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	bookings, err := h.bookingService.ListForHost(c.Request.Context(), userID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.FromBookings(bookings))
}

// Confirm handles POST /bookings/:id/confirm
func (h *BookingHandler) Confirm(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	booking, err := h.bookingService.Confirm(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.FromBooking(booking))
}

// Cancel handles POST /bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req dto.CancelBookingRequest
	// Body is optional; an empty body is a cancellation without reason.
	_ = c.ShouldBindJSON(&req)

	booking, err := h.bookingService.Cancel(c.Request.Context(), c.Param("id"), userID, req.Reason)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.FromBooking(booking))
}

// Complete handles POST /bookings/:id/complete
func (h *BookingHandler) Complete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	booking, err := h.bookingService.Complete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.FromBooking(booking))
}

// Availability handles GET /properties/:id/availability
func (h *BookingHandler) Availability(c *gin.Context) {
	checkIn, err := parseDate(c.Query("check_in"))
	if err != nil {
		response.BadRequest(c, "check_in must be a date in YYYY-MM-DD format")
		return
	}
	checkOut, err := parseDate(c.Query("check_out"))
	if err != nil {
		response.BadRequest(c, "check_out must be a date in YYYY-MM-DD format")
		return
	}

	available, err := h.bookingService.IsAvailable(c.Request.Context(), c.Param("id"), checkIn, checkOut)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, gin.H{
		"property_id": c.Param("id"),
		"check_in":    checkIn.Format("2006-01-02"),
		"check_out":   checkOut.Format("2006-01-02"),
		"available":   available,
	})
}

// PaidDates handles GET /properties/:id/paid-dates
func (h *BookingHandler) PaidDates(c *gin.Context) {
	dates, err := h.bookingService.PaidDates(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, dto.PaidDatesResponse{
		PropertyID: c.Param("id"),
		Dates:      dates,
	})
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
