package repository

import (
	"context"
	"time"

	"bikecare/backend/internal/session/domain"
)

// Repository defines persistence for phone sessions, keyed by token hash.
type Repository interface {
	Create(ctx context.Context, s *domain.PhoneSession) error
	// GetByTokenHash returns the session, or nil if none exists. Expiry is not checked here.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PhoneSession, error)
	Delete(ctx context.Context, tokenHash string) error
	// DeleteExpired removes every session whose expiry is at or before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
