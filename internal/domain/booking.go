package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the stored lifecycle state of a booking.
// There is no stored "active" status: a stay in progress is derived from
// a confirmed booking whose window contains the current time.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusRefunded  BookingStatus = "refunded"
)

// PaymentState is the booking-side payment sub-state.
type PaymentState string

const (
	PaymentStatePending  PaymentState = "pending"
	PaymentStatePaid     PaymentState = "paid"
	PaymentStateRefunded PaymentState = "refunded"
)

// RefundState tracks the cancellation refund intent on a booking.
type RefundState string

const (
	RefundStatePending   RefundState = "pending"
	RefundStateCompleted RefundState = "completed"
	RefundStateFailed    RefundState = "failed"
)

// CancelActor identifies who initiated a cancellation.
type CancelActor string

const (
	CancelActorGuest  CancelActor = "guest"
	CancelActorHost   CancelActor = "host"
	CancelActorSystem CancelActor = "system"
)

const (
	MinNights = 1
	MaxNights = 30
)

// Occupancy holds the guest counts for a stay.
type Occupancy struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
	Pets     int `json:"pets"`
}

// PriceBreakdown is the itemized price of a stay. Total is always the
// exact sum of the components.
type PriceBreakdown struct {
	NightlyRate     float64 `json:"nightly_rate"`
	Nights          int     `json:"nights"`
	BasePrice       float64 `json:"base_price"`
	CleaningFee     float64 `json:"cleaning_fee"`
	ServiceFee      float64 `json:"service_fee"`
	SecurityDeposit float64 `json:"security_deposit"`
	Taxes           float64 `json:"taxes"`
	Total           float64 `json:"total"`
}

// Cancellation records the cancellation intent on a booking. Refund
// execution happens separately through the payment ledger.
type Cancellation struct {
	CancelledBy  CancelActor `json:"cancelled_by"`
	CancelledAt  time.Time   `json:"cancelled_at"`
	Reason       string      `json:"reason,omitempty"`
	RefundAmount float64     `json:"refund_amount"`
	RefundStatus RefundState `json:"refund_status"`
}

// Booking is a reservation of a property for a half-open [CheckIn, CheckOut) window.
type Booking struct {
	ID         string
	PropertyID string
	GuestID    string
	HostID     string

	CheckIn   time.Time
	CheckOut  time.Time
	Occupancy Occupancy
	Pricing   PriceBreakdown

	Status        BookingStatus
	PaymentStatus PaymentState
	TransactionID string
	PaidAt        *time.Time

	Cancellation *Cancellation

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBooking creates a pending booking. Dates must already be validated
// and priced by the caller; host is copied from the property.
func NewBooking(propertyID, guestID, hostID string, checkIn, checkOut time.Time, occ Occupancy, pricing PriceBreakdown) *Booking {
	now := time.Now().UTC()
	return &Booking{
		ID:            uuid.New().String(),
		PropertyID:    propertyID,
		GuestID:       guestID,
		HostID:        hostID,
		CheckIn:       checkIn.UTC(),
		CheckOut:      checkOut.UTC(),
		Occupancy:     occ,
		Pricing:       pricing,
		Status:        BookingStatusPending,
		PaymentStatus: PaymentStatePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Nights returns the billed night count: the stay duration divided by
// 24h, rounded up so partial nights bill as whole nights.
func Nights(checkIn, checkOut time.Time) int {
	if !checkOut.After(checkIn) {
		return 0
	}
	return int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
}

// ValidateWindow checks the stay window against the booking rules.
func ValidateWindow(checkIn, checkOut, now time.Time) error {
	if checkIn.Before(now.Truncate(24 * time.Hour)) {
		return ValidationError("CHECKIN_IN_PAST", "check-in date cannot be in the past")
	}
	if !checkOut.After(checkIn) {
		return ValidationError("INVALID_DATE_RANGE", "check-out must be after check-in")
	}
	n := Nights(checkIn, checkOut)
	if n < MinNights {
		return ValidationError("STAY_TOO_SHORT", "stay must be at least 1 night")
	}
	if n > MaxNights {
		return ValidationError("STAY_TOO_LONG", "stay cannot exceed 30 nights")
	}
	return nil
}

// Validate checks occupancy rules.
func (o Occupancy) Validate() error {
	if o.Adults < 1 {
		return ValidationError("INVALID_OCCUPANCY", "at least one adult is required")
	}
	if o.Children < 0 || o.Infants < 0 || o.Pets < 0 {
		return ValidationError("INVALID_OCCUPANCY", "guest counts cannot be negative")
	}
	return nil
}

// Guests returns the count of occupants against the property capacity.
// Infants and pets do not count toward capacity.
func (o Occupancy) Guests() int {
	return o.Adults + o.Children
}

// Overlaps reports whether the booking window intersects [checkIn, checkOut)
// under half-open semantics. Back-to-back stays sharing a boundary day do
// not overlap.
func (b *Booking) Overlaps(checkIn, checkOut time.Time) bool {
	return b.CheckIn.Before(checkOut) && b.CheckOut.After(checkIn)
}

// Blocks reports whether the booking makes its window unavailable to
// other bookings: only confirmed bookings (including stays in progress)
// hold the dates.
func (b *Booking) Blocks() bool {
	return b.Status == BookingStatusConfirmed
}

// IsActiveAt reports the derived "stay in progress" state.
func (b *Booking) IsActiveAt(t time.Time) bool {
	return b.Status == BookingStatusConfirmed && !t.Before(b.CheckIn) && t.Before(b.CheckOut)
}

// Confirm moves a pending booking to confirmed (host acceptance).
func (b *Booking) Confirm() error {
	if b.Status != BookingStatusPending {
		return ErrBookingNotPending
	}
	b.Status = BookingStatusConfirmed
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPaid applies a successful payment to the booking: the payment
// sub-state becomes paid and the booking confirmed regardless of whether
// the host confirmed first. Returns false without error when the booking
// is already paid, so replayed notifications are no-ops. Terminal
// bookings reject the payment.
func (b *Booking) MarkPaid(transactionID string, paidAt time.Time) (bool, error) {
	switch b.Status {
	case BookingStatusCancelled, BookingStatusRefunded, BookingStatusCompleted:
		return false, NewError(KindConflict, "BOOKING_CLOSED", "booking is no longer payable", nil)
	}
	if b.PaymentStatus == PaymentStatePaid {
		return false, nil
	}
	at := paidAt.UTC()
	b.PaymentStatus = PaymentStatePaid
	b.TransactionID = transactionID
	b.PaidAt = &at
	b.Status = BookingStatusConfirmed
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

// CanCancel reports whether the booking may still be cancelled.
func (b *Booking) CanCancel() bool {
	return b.Status != BookingStatusCancelled && b.Status != BookingStatusCompleted
}

// Cancel records the cancellation intent. The refund itself runs through
// the payment ledger; here only the intent is captured, with the full
// total as the default refund amount.
func (b *Booking) Cancel(by CancelActor, reason string, at time.Time) error {
	if !b.CanCancel() {
		return ErrBookingNotCancelable
	}
	b.Status = BookingStatusCancelled
	b.Cancellation = &Cancellation{
		CancelledBy:  by,
		CancelledAt:  at.UTC(),
		Reason:       reason,
		RefundAmount: b.Pricing.Total,
		RefundStatus: RefundStatePending,
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete closes out a stay. Only a confirmed booking whose check-out
// has passed can complete.
func (b *Booking) Complete(now time.Time) error {
	if b.Status != BookingStatusConfirmed || now.Before(b.CheckOut) {
		return ErrBookingNotActive
	}
	b.Status = BookingStatusCompleted
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkRefunded flips a cancelled booking to refunded once the payment
// ledger reports the refund settled.
func (b *Booking) MarkRefunded() {
	b.Status = BookingStatusRefunded
	b.PaymentStatus = PaymentStateRefunded
	if b.Cancellation != nil {
		b.Cancellation.RefundStatus = RefundStateCompleted
	}
	b.UpdatedAt = time.Now().UTC()
}

// PaidDays expands a paid booking into UTC day strings, check-in day
// inclusive and check-out day exclusive.
func (b *Booking) PaidDays() []string {
	if b.PaymentStatus != PaymentStatePaid {
		return nil
	}
	var days []string
	start := b.CheckIn.UTC().Truncate(24 * time.Hour)
	end := b.CheckOut.UTC().Truncate(24 * time.Hour)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}
