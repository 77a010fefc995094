// Package cookiesession is the legacy back-office login channel: an opaque cookie backed by a
// server-side session record.
package cookiesession

import (
	"context"
	"errors"
	"time"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "bikecare_sid"
	// DefaultTTL is the lifetime of a cookie session.
	DefaultTTL = 12 * time.Hour
)

// ErrNotFound is returned when no live session matches the cookie.
var ErrNotFound = errors.New("cookie session not found")

// Session is the server-side record behind a cookie. ID is the SHA-256 of the cookie value.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists cookie sessions. Get returns (nil, nil) when id is unknown.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
