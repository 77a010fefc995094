package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Records older than Retention are evicted on read and by Sweep.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]Session
	nowF func() time.Time
}

// NewMemoryStore returns an empty in-memory OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]Session),
		nowF: time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.nowF().Sub(sess.CreatedAt) > Retention {
		s.mu.Lock()
		delete(s.m, id)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) MarkVerified(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[id]
	if !ok || s.nowF().Sub(sess.CreatedAt) > Retention {
		return false, ErrSessionNotFound
	}
	if sess.Verified {
		return false, nil
	}
	sess.Verified = true
	s.m[id] = sess
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

// Sweep removes every record past Retention and returns how many were removed.
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.m {
		if now.Sub(sess.CreatedAt) > Retention {
			delete(s.m, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
