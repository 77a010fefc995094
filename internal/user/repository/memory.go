package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"bikecare/backend/internal/user/domain"
)

// MemoryRepository is an in-process Repository used when no database is configured and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	lookups int
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]domain.User)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	r.lookups++
	u, ok := r.users[id]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(email)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, u := range r.users {
		if u.Email != "" && u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

// Lookups returns how many GetByID and GetByEmail calls the repository has served.
func (r *MemoryRepository) Lookups() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookups
}

func (r *MemoryRepository) Upsert(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if email := strings.ToLower(u.Email); email != "" {
		for id, other := range r.users {
			if id != u.ID && other.Email == email {
				return domain.ErrEmailTaken
			}
		}
	}
	now := time.Now().UTC()
	cur, ok := r.users[u.ID]
	if !ok {
		nu := *copyUser(*u)
		nu.Email = strings.ToLower(nu.Email)
		if nu.CreatedAt.IsZero() {
			nu.CreatedAt = now
		}
		nu.UpdatedAt = now
		r.users[u.ID] = nu
		return nil
	}
	if u.Email != "" {
		cur.Email = strings.ToLower(u.Email)
	}
	if u.Phone != "" {
		cur.Phone = u.Phone
	}
	if u.FirstName != "" {
		cur.FirstName = u.FirstName
	}
	if u.LastName != "" {
		cur.LastName = u.LastName
	}
	if u.AvatarURL != "" {
		cur.AvatarURL = u.AvatarURL
	}
	cur.UpdatedAt = now
	r.users[u.ID] = cur
	return nil
}

func (r *MemoryRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsAdmin = domain.Bool(isAdmin)
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *MemoryRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func copyUser(u domain.User) *domain.User {
	c := u
	if u.IsAdmin != nil {
		c.IsAdmin = domain.Bool(*u.IsAdmin)
	}
	return &c
}
