package repository

import (
	"context"
	"sync"
	"time"

	"bikecare/backend/internal/session/domain"
)

// MemoryRepository is an in-process Repository used when no database is configured and in tests.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[string]domain.PhoneSession
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]domain.PhoneSession)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.PhoneSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[s.TokenHash] = *s
	return nil
}

func (r *MemoryRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PhoneSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.m[tokenHash]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, tokenHash)
	return nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.m {
		if !now.Before(s.ExpiresAt) {
			delete(r.m, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
