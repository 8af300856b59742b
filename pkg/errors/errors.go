package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Booking error kinds. Each maps to a distinct user-visible sentence in the
// conversation flows; none of them exposes internal identifiers.
var (
	ErrNoInstructor        = New("NO_INSTRUCTOR", http.StatusPreconditionFailed, "student has no assigned instructor")
	ErrNoPricing           = New("NO_PRICING", http.StatusPreconditionFailed, "no pricing configured for license class")
	ErrInsufficientBalance = New("INSUFFICIENT_BALANCE", http.StatusPaymentRequired, "account balance is too low for this lesson")
	ErrPastSlot            = New("PAST_SLOT", http.StatusBadRequest, "requested slot is in the past")
	ErrOutOfWindow         = New("OUT_OF_WINDOW", http.StatusBadRequest, "requested slot is outside the booking window")
	ErrSlotTaken           = New("SLOT_TAKEN", http.StatusConflict, "requested slot is no longer available")
	ErrDailyLimit          = New("DAILY_LIMIT", http.StatusConflict, "daily lesson limit reached")
	ErrWrongStatus         = New("WRONG_STATUS", http.StatusConflict, "lesson is not in a valid status for this operation")
	ErrCancelLeadTime      = New("CANCEL_LEAD_TIME", http.StatusConflict, "lesson starts too soon to cancel")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
