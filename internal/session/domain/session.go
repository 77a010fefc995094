package domain

import "time"

// TokenPrefix marks durable phone-session bearer tokens. It never collides with the legacy
// "phone_" token namespace.
const TokenPrefix = "phs_"

// PhoneSession is a durable login created after OTP verification when no provider credential
// could be minted. Only the SHA-256 of the bearer token is stored.
type PhoneSession struct {
	TokenHash string
	UserID    string
	Phone     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *PhoneSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
