// Package apperr maps domain errors to the API error taxonomy and writes JSON error bodies.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"bikecare/backend/internal/otp"
	"bikecare/backend/internal/session"
)

// Code is a caller-visible error code.
type Code string

const (
	InvalidCredential  Code = "INVALID_CREDENTIAL"
	SessionNotFound    Code = "SESSION_NOT_FOUND"
	CodeFormatInvalid  Code = "CODE_FORMAT_INVALID"
	CodeMismatch       Code = "CODE_MISMATCH"
	CodeExpired        Code = "CODE_EXPIRED"
	CodeAlreadyUsed    Code = "CODE_ALREADY_USED"
	Unauthenticated    Code = "UNAUTHENTICATED"
	Forbidden          Code = "FORBIDDEN"
	ConfigurationError Code = "CONFIGURATION_ERROR"
	RateLimited        Code = "RATE_LIMITED"
	InvalidRequest     Code = "INVALID_REQUEST"
	NotFound           Code = "NOT_FOUND"
	Unavailable        Code = "UNAVAILABLE"
	Internal           Code = "INTERNAL"
)

// Error is an error carrying a taxonomy code and HTTP status.
type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error with the default status of code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Status: statusOf(code), Message: message}
}

// Wrap returns an *Error with code that wraps err.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Status: statusOf(code), Message: message, Err: err}
}

func statusOf(code Code) int {
	switch code {
	case InvalidCredential, Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case SessionNotFound, NotFound:
		return http.StatusNotFound
	case CodeFormatInvalid, CodeMismatch, InvalidRequest:
		return http.StatusBadRequest
	case CodeExpired:
		return http.StatusGone
	case CodeAlreadyUsed:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// From classifies err. Unknown errors become INTERNAL with a generic message so internals never
// leak to callers.
func From(err error) *Error {
	var ae *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, otp.ErrInvalidCodeFormat):
		return Wrap(CodeFormatInvalid, "code must be exactly 6 digits", err)
	case errors.Is(err, otp.ErrSessionNotFound):
		return Wrap(SessionNotFound, "verification session not found", err)
	case errors.Is(err, otp.ErrCodeMismatch):
		return Wrap(CodeMismatch, "verification code does not match", err)
	case errors.Is(err, otp.ErrCodeExpired):
		return Wrap(CodeExpired, "verification code has expired", err)
	case errors.Is(err, otp.ErrCodeAlreadyUsed):
		return Wrap(CodeAlreadyUsed, "verification code was already used", err)
	case errors.Is(err, otp.ErrInvalidPhone):
		return Wrap(InvalidRequest, "phone number is invalid", err)
	case errors.Is(err, otp.ErrRateLimited):
		return Wrap(RateLimited, "too many codes requested, try again later", err)
	case errors.Is(err, otp.ErrDeliveryFailed):
		return Wrap(Unavailable, "could not deliver verification code", err)
	case errors.Is(err, session.ErrNotFound):
		return Wrap(InvalidCredential, "invalid credential", err)
	default:
		return Wrap(Internal, "internal error", err)
	}
}

// Body is the JSON error response.
type Body struct {
	ErrorCode    Code   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Write writes err as a JSON error response.
func Write(w http.ResponseWriter, err error) {
	ae := From(err)
	if ae == nil {
		ae = New(Internal, "internal error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Status)
	_ = json.NewEncoder(w).Encode(Body{ErrorCode: ae.Code, ErrorMessage: ae.Message})
}
