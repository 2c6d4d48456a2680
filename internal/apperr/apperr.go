// Package apperr defines the error taxonomy shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindUpstream     Kind = "upstream_unavailable"
	KindInternal     Kind = "internal"
)

// Error carries a kind, a stable machine code and a client-safe message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by code so sentinels survive Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New builds a sentinel.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap returns a copy of sentinel with cause attached.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: cause}
}

// Validation builds an ad-hoc validation error with a custom message.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_input", Message: message}
}

// KindOf reports the kind of err; unknown errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps the kind of err to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrInvalidInput = New(KindValidation, "invalid_input", "invalid request")

	ErrUserNotFound    = New(KindNotFound, "user_not_found", "user not found")
	ErrCodeNotFound    = New(KindNotFound, "code_not_found", "no code found, request a new one")
	ErrNotFound        = New(KindNotFound, "not_found", "resource not found")
	ErrDuplicateEmail  = New(KindConflict, "duplicate_email", "email already exists")
	ErrAlreadyVerified = New(KindConflict, "already_verified", "email already verified")

	ErrInvalidCredentials = New(KindUnauthorized, "invalid_credentials", "invalid email or password")
	ErrEmailNotVerified   = New(KindUnauthorized, "email_not_verified", "please verify your email before logging in")
	ErrAccountDisabled    = New(KindUnauthorized, "account_disabled", "account is disabled")
	ErrTokenMissing       = New(KindUnauthorized, "token_missing", "access denied, no token provided")
	ErrTokenInvalid       = New(KindUnauthorized, "token_invalid", "invalid token")
	ErrSessionRevoked     = New(KindUnauthorized, "session_revoked", "session has been revoked, please login again")
	ErrSessionExpired     = New(KindUnauthorized, "session_expired", "session expired, please login again")

	ErrCodeInvalid     = New(KindValidation, "code_invalid", "invalid code")
	ErrCodeExpired     = New(KindValidation, "code_expired", "code has expired, request a new one")
	ErrCodeAlreadyUsed = New(KindValidation, "code_already_used", "code already used")

	ErrCodeAttemptsExhausted = New(KindRateLimited, "code_attempts_exhausted", "maximum attempts reached, request a new code")
	ErrTooManyRequests       = New(KindRateLimited, "too_many_requests", "too many code requests, try again later")

	ErrNotificationFailed = New(KindUpstream, "notification_failed", "failed to deliver notification")
)
