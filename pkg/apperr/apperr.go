// Package apperr defines the error taxonomy shared by the booking domain.
// Every error carries a machine-readable Kind so that transports can map it
// onto a status code without inspecting message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindInvalidRange        Kind = "invalid_range"
	KindOverlap             Kind = "overlap"
	KindOutsideAvailability Kind = "outside_availability"
	KindSlotConflict        Kind = "slot_conflict"
	KindInvalidTransition   Kind = "invalid_transition"
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation"
	KindForbidden           Kind = "forbidden"
	KindUnauthorized        Kind = "unauthorized"
	KindConflict            Kind = "conflict"
	KindRateLimited         Kind = "rate_limited"
	KindTimeout             Kind = "timeout"
	KindInternal            Kind = "internal"
)

// Error is an application error with a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error of the same kind. This lets callers
// write errors.Is(err, apperr.ErrSlotConflict) regardless of message text.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf returns an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidRange        = New(KindInvalidRange, "invalid time range")
	ErrOverlap             = New(KindOverlap, "entry overlaps an existing entry")
	ErrOutsideAvailability = New(KindOutsideAvailability, "requested time is outside the dentist's availability")
	ErrSlotConflict        = New(KindSlotConflict, "requested time conflicts with an existing appointment")
	ErrInvalidTransition   = New(KindInvalidTransition, "invalid status transition")
	ErrNotFound            = New(KindNotFound, "not found")
	ErrValidation          = New(KindValidation, "validation failed")
	ErrForbidden           = New(KindForbidden, "forbidden")
	ErrUnauthorized        = New(KindUnauthorized, "unauthorized")
	ErrConflict            = New(KindConflict, "conflict")
)

// NotFound is shorthand for a not-found error naming the missing entity.
func NotFound(entity string) *Error {
	return New(KindNotFound, entity+" not found")
}

// Validation is shorthand for a validation error.
func Validation(format string, args ...interface{}) *Error {
	return Newf(KindValidation, format, args...)
}

// KindForStatus is the inverse of Status for transport-level errors that
// arrive without a kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusGatewayTimeout, http.StatusServiceUnavailable:
		return KindTimeout
	default:
		return KindInternal
	}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps a kind onto an HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindInvalidRange, KindOutsideAvailability, KindValidation:
		return http.StatusBadRequest
	case KindOverlap, KindSlotConflict, KindInvalidTransition, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
