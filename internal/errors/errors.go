// Package errors provides standardized error handling for the API.
//
// This package implements a consistent error format across all endpoints,
// mapped directly onto the error taxonomy: Authn, Authz, Validation,
// Conflict, Gone, Internal. Each maps to exactly one HTTP status code.
//
// JSON Response Format:
//
//	{"code": int, "message": string}
package errors

import (
	"fmt"
	"net/http"
)

// AppError represents a standardized application error with HTTP context.
type AppError struct {
	// Kind is the taxonomy bucket this error belongs to.
	Kind string `json:"-"`

	// Message is a human-readable, user-meaningful description. For
	// security-sensitive paths (bad credentials, unknown resource) this is
	// deliberately opaque.
	Message string `json:"message"`

	// Details carries additional context for server-side logs only; never
	// serialized to the client.
	Details string `json:"-"`

	// StatusCode is the HTTP status code to return.
	StatusCode int `json:"code"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Taxonomy buckets from §7.
const (
	KindAuthn      = "authn"
	KindAuthz      = "authz"
	KindValidation = "validation"
	KindConflict   = "conflict"
	KindGone       = "gone"
	KindInternal   = "internal"
)

// ErrorResponse is the wire format for every error body.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Code: e.StatusCode, Message: e.Message}
}

func statusForKind(kind string) int {
	switch kind {
	case KindAuthn:
		return http.StatusUnauthorized
	case KindAuthz:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindGone:
		return http.StatusGone
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func New(kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, StatusCode: statusForKind(kind)}
}

func Wrap(kind, message string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &AppError{Kind: kind, Message: message, Details: details, StatusCode: statusForKind(kind)}
}

// Authn — absent/malformed/expired token, signature invalid, unknown rtc
// identity, token mismatch.
func Authn(message string) *AppError { return New(KindAuthn, message) }

// Authz — user not in guild, not friend, not owner, cannot consume codec.
func Authz(message string) *AppError { return New(KindAuthz, message) }

// Validation — regex mismatch, empty content with no attachments, length caps.
func Validation(message string) *AppError { return New(KindValidation, message) }

// Conflict — duplicate id, transport already created, friend request already pending.
func Conflict(message string) *AppError { return New(KindConflict, message) }

// Gone — expired or exhausted invite.
func Gone(message string) *AppError { return New(KindGone, message) }

// Internal — DB error, media subsystem error. Logged with context by the
// caller before being returned; the client only ever sees a generic message.
func Internal(err error) *AppError {
	return Wrap(KindInternal, "an internal error occurred", err)
}

func InvalidCredentials() *AppError {
	return New(KindAuthn, "invalid credentials")
}

func TokenExpired() *AppError {
	return New(KindAuthn, "token expired")
}

func TokenInvalid() *AppError {
	return New(KindAuthn, "invalid token")
}

// NotFound reports a missing resource as Authz rather than a dedicated 404:
// the taxonomy has no not-found bucket, and folding it into Forbidden avoids
// telling an unauthorized caller whether the resource exists at all.
func NotFound(resource string) *AppError {
	return New(KindAuthz, fmt.Sprintf("%s not found", resource))
}
