// Package apperrors defines the error kinds surfaced by the fleet core and
// their HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindOwnershipMismatch Kind = "ownership_mismatch"
	KindUnauthenticated   Kind = "unauthenticated"
	KindAccessDenied      Kind = "access_denied"
	KindGatewayFailure    Kind = "gateway_failure"
	KindValidation        Kind = "validation_failure"
)

// AppError is an error with a kind, a user-facing message and an optional
// wrapped cause.
type AppError struct {
	Kind    Kind   `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by kind, so errors.Is(err, ErrNotFound) works.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Status maps the kind to an HTTP status code.
func (e *AppError) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindOwnershipMismatch:
		return http.StatusConflict
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindGatewayFailure:
		return http.StatusBadGateway
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrOwnershipMismatch = &AppError{Kind: KindOwnershipMismatch}
	ErrUnauthenticated   = &AppError{Kind: KindUnauthenticated}
	ErrAccessDenied      = &AppError{Kind: KindAccessDenied}
	ErrGatewayFailure    = &AppError{Kind: KindGatewayFailure}
	ErrValidation        = &AppError{Kind: KindValidation}
)

func NotFound(what string) *AppError {
	return &AppError{Kind: KindNotFound, Message: what + " not found"}
}

func OwnershipMismatch(message string) *AppError {
	return &AppError{Kind: KindOwnershipMismatch, Message: message}
}

func Unauthenticated(message string) *AppError {
	return &AppError{Kind: KindUnauthenticated, Message: message}
}

func AccessDenied(message string) *AppError {
	return &AppError{Kind: KindAccessDenied, Message: message}
}

func Validation(message string, details ...string) *AppError {
	e := &AppError{Kind: KindValidation, Message: message}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// Gateway wraps a store error. The underlying message is preserved.
func Gateway(op string, err error) *AppError {
	return &AppError{Kind: KindGatewayFailure, Message: op + " failed", Err: err}
}

// As extracts the *AppError from err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" if err is not an AppError.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return ""
}
