package repository

import (
	"context"
	"sort"
	"sync"

	"bikecare/backend/internal/audit/domain"
)

// MemoryRepository keeps audit logs in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditLog
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			out := e
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) List(ctx context.Context, f Filter) ([]*domain.AuditLog, error) {
	r.mu.RLock()
	var matched []domain.AuditLog
	for i := range r.entries {
		if f.matches(&r.entries[i]) {
			matched = append(matched, r.entries[i])
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if f.Offset < 0 || int(f.Offset) >= len(matched) {
		return nil, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && int(f.Limit) < len(matched) {
		matched = matched[:f.Limit]
	}
	out := make([]*domain.AuditLog, len(matched))
	for i := range matched {
		out[i] = &matched[i]
	}
	return out, nil
}

func (r *MemoryRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *a)
	return nil
}
