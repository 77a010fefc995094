package repository

import (
	"context"

	"bikecare/backend/internal/audit/domain"
)

// Filter narrows List. Empty UserID or Action matches every entry. Limit <= 0 means no limit.
type Filter struct {
	UserID string
	Action string
	Limit  int32
	Offset int32
}

func (f Filter) matches(a *domain.AuditLog) bool {
	return (f.UserID == "" || a.UserID == f.UserID) && (f.Action == "" || a.Action == f.Action)
}

// Repository stores the append-only audit trail of auth and admin actions.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// GetByID returns nil, nil when id is unknown.
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	// List returns entries matching f, newest first.
	List(ctx context.Context, f Filter) ([]*domain.AuditLog, error)
}
