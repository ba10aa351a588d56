package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error so the transport layer can map it
// to a status code without inspecting individual sentinels.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindExternal      ErrorKind = "external"
	KindPersistence   ErrorKind = "persistence"
)

// Error is a kinded domain error. Message is safe to return to clients;
// Err carries the internal cause for logs only.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind and Code so sentinels survive wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// NewError creates a kinded error with an internal cause attached.
func NewError(kind ErrorKind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindPersistence for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// ValidationError wraps a request-shape or business-rule violation.
func ValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// AuthorizationError wraps an ownership or role failure.
func AuthorizationError(message string) *Error {
	return &Error{Kind: KindAuthorization, Code: "FORBIDDEN", Message: message}
}

// ExternalError wraps a payment-processor failure.
func ExternalError(code string, err error) *Error {
	return &Error{Kind: KindExternal, Code: code, Message: "payment processor error", Err: err}
}

// PersistenceError wraps a storage failure.
func PersistenceError(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: "STORAGE_ERROR", Message: "storage operation failed", Err: fmt.Errorf("%s: %w", op, err)}
}

// Sentinel errors shared across services and handlers.
var (
	ErrBookingNotFound  = &Error{Kind: KindNotFound, Code: "BOOKING_NOT_FOUND", Message: "booking not found"}
	ErrPaymentNotFound  = &Error{Kind: KindNotFound, Code: "PAYMENT_NOT_FOUND", Message: "payment not found"}
	ErrPropertyNotFound = &Error{Kind: KindNotFound, Code: "PROPERTY_NOT_FOUND", Message: "property not found"}

	ErrDatesUnavailable     = &Error{Kind: KindConflict, Code: "DATES_UNAVAILABLE", Message: "property is not available for the selected dates"}
	ErrBookingNotPending    = &Error{Kind: KindConflict, Code: "BOOKING_NOT_PENDING", Message: "booking is not pending"}
	ErrBookingNotCancelable = &Error{Kind: KindConflict, Code: "BOOKING_NOT_CANCELABLE", Message: "booking can no longer be cancelled"}
	ErrBookingNotActive     = &Error{Kind: KindConflict, Code: "BOOKING_NOT_ACTIVE", Message: "booking stay is not in progress"}
	ErrBookingAlreadyPaid   = &Error{Kind: KindConflict, Code: "BOOKING_ALREADY_PAID", Message: "booking is already paid"}
	ErrPaymentNotRefundable = &Error{Kind: KindConflict, Code: "PAYMENT_NOT_REFUNDABLE", Message: "payment cannot be refunded"}
	ErrRefundExceedsAmount  = &Error{Kind: KindConflict, Code: "REFUND_EXCEEDS_AMOUNT", Message: "refund exceeds remaining refundable amount"}
	ErrPropertySuspended    = &Error{Kind: KindConflict, Code: "PROPERTY_SUSPENDED", Message: "property is not accepting bookings"}
)
