// Package otp issues and verifies short-lived SMS verification codes.
package otp

import (
	"errors"
	"time"
)

const (
	// CodeTTL is how long a code stays verifiable after it is issued.
	CodeTTL = 5 * time.Minute
	// Retention is how long a session record is kept. It outlives CodeTTL so a late
	// verification reports an expired code rather than an unknown session.
	Retention = 2 * CodeTTL
	// AdminBypassCode is accepted for the configured admin phone when the bypass is enabled.
	AdminBypassCode = "123456"
)

var (
	ErrInvalidCodeFormat = errors.New("otp: code must be exactly 6 digits")
	ErrSessionNotFound   = errors.New("otp: session not found")
	ErrCodeMismatch      = errors.New("otp: code mismatch")
	ErrCodeExpired       = errors.New("otp: code expired")
	ErrCodeAlreadyUsed   = errors.New("otp: code already used")
	ErrInvalidPhone      = errors.New("otp: invalid phone number")
	ErrRateLimited       = errors.New("otp: too many codes requested for this phone")
	ErrDeliveryFailed    = errors.New("otp: code delivery failed")
)

// Session is one issued code. Phone holds international digits (see phone.International).
type Session struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	CodeHash  string    `json:"codeHash"`
	CreatedAt time.Time `json:"createdAt"`
	Verified  bool      `json:"verified"`
}

// Expired reports whether the code window has closed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > CodeTTL
}
