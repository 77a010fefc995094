package cookiesession

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bikecare/backend/internal/security"
)

// Manager issues, reads and clears the session cookie.
type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
	nowF   func() time.Time
}

// NewManager returns a Manager. ttl <= 0 uses DefaultTTL. secure sets the cookie Secure attribute.
func NewManager(store Store, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, secure: secure, nowF: time.Now}
}

// Create stores a new session for the user and sets the cookie on w.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, userID, email string, isAdmin bool) (*Session, error) {
	value, err := security.NewOpaqueToken("")
	if err != nil {
		return nil, fmt.Errorf("cookiesession: generate: %w", err)
	}
	now := m.nowF().UTC()
	sess := &Session{
		ID:        security.HashToken(value),
		UserID:    userID,
		Email:     email,
		IsAdmin:   isAdmin,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	http.SetCookie(w, m.cookie(value, sess.ExpiresAt, int(m.ttl.Seconds())))
	return sess, nil
}

// Lookup returns the live session named by the request cookie, or ErrNotFound.
func (m *Manager) Lookup(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNotFound
	}
	sess, err := m.store.Get(ctx, security.HashToken(c.Value))
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Expired(m.nowF()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Destroy deletes the server-side session (if any) and expires the cookie. It is safe to call
// without a cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var err error
	if c, cerr := r.Cookie(CookieName); cerr == nil && c.Value != "" {
		err = m.store.Delete(ctx, security.HashToken(c.Value))
	}
	http.SetCookie(w, m.cookie("", time.Unix(0, 0), -1))
	return err
}

func (m *Manager) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
