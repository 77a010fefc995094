package repository

import (
	"context"

	"bikecare/backend/internal/user/domain"
)

// Repository defines persistence for users. Lookups return (nil, nil) when the user does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Upsert creates the user or refreshes its profile fields. It never changes IsAdmin or PasswordHash
	// of an existing user; use SetAdmin and SetPasswordHash for those.
	Upsert(ctx context.Context, u *domain.User) error
	// SetAdmin sets the persisted admin flag. Returns domain.ErrNotFound if the user does not exist.
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	SetPasswordHash(ctx context.Context, id, hash string) error
}
