package otp

import "context"

// Store persists OTP sessions by id. Get returns ErrSessionNotFound for unknown or evicted ids.
//
// MarkVerified flips Verified atomically: it reports true only for the one caller that moved the
// session from unverified to verified, and false when it was already verified.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	MarkVerified(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}
