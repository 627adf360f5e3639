package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers of the auth core
type Kind string

const (
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindConflict            Kind = "CONFLICT"
	KindNotFound            Kind = "NOT_FOUND"
	KindExpired             Kind = "EXPIRED"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindTokenInvalid        Kind = "TOKEN_INVALID"
	KindTokenExpired        Kind = "TOKEN_EXPIRED"
	KindInvalidSignature    Kind = "INVALID_SIGNATURE"
	KindInvalidCode         Kind = "INVALID_CODE"
	KindInternal            Kind = "INTERNAL"
)

// Error is the single error type crossing the service boundary
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports a match when target is an *Error of the same kind.
// Sentinels below can therefore be used with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

var (
	ErrInvalidInput        = New(KindInvalidInput, "invalid input")
	ErrUnauthorized        = New(KindUnauthorized, "unauthorized")
	ErrConflict            = New(KindConflict, "conflict")
	ErrNotFound            = New(KindNotFound, "not found")
	ErrExpired             = New(KindExpired, "expired")
	ErrUpstreamUnavailable = New(KindUpstreamUnavailable, "upstream unavailable")
	ErrTokenInvalid        = New(KindTokenInvalid, "token invalid")
	ErrTokenExpired        = New(KindTokenExpired, "token expired")
	ErrInvalidSignature    = New(KindInvalidSignature, "invalid signature")
	ErrInvalidCode         = New(KindInvalidCode, "invalid code")
	ErrInternal            = New(KindInternal, "internal error")
)

// KindOf returns the kind of the outermost *Error in the chain, or KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-safe message of the outermost *Error in the chain
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps an error to the status code used by the routing layer
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput, KindInvalidCode:
		return http.StatusBadRequest
	case KindUnauthorized, KindTokenInvalid, KindTokenExpired, KindInvalidSignature, KindNotFound, KindExpired:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
