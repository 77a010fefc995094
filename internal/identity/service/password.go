package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"bikecare/backend/internal/identity/allowlist"
	identitydomain "bikecare/backend/internal/identity/domain"
	telemetrydomain "bikecare/backend/internal/telemetry/domain"
	userdomain "bikecare/backend/internal/user/domain"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// PasswordMatcher compares a stored hash against a candidate password.
type PasswordMatcher interface {
	Matches(hash, password string) bool
}

// rehasher is implemented by matchers that can upgrade hashes made at an outdated cost.
type rehasher interface {
	NeedsRehash(hash string) bool
	Hash(password string) (string, error)
}

type passwordStore interface {
	SetPasswordHash(ctx context.Context, id, hash string) error
}

// PasswordLoginService authenticates admin operators by email and password.
type PasswordLoginService struct {
	users  UserStore
	hasher PasswordMatcher
	admins *allowlist.AdminList
	events *Recorder
}

// NewPasswordLoginService returns a PasswordLoginService.
func NewPasswordLoginService(users UserStore, hasher PasswordMatcher, admins *allowlist.AdminList, events *Recorder) *PasswordLoginService {
	return &PasswordLoginService{users: users, hasher: hasher, admins: admins, events: events}
}

// Login returns the user and its admin status. Unknown users, users without a password and wrong
// passwords are all ErrInvalidCredentials.
func (s *PasswordLoginService) Login(ctx context.Context, email, password string) (*userdomain.User, bool, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil || password == "" {
		return nil, false, ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if u == nil || u.PasswordHash == "" || !s.hasher.Matches(u.PasswordHash, password) {
		s.events.Record(ctx, telemetrydomain.EventPasswordLogin, "", string(identitydomain.SourceCookieSession), "denied", "session", map[string]interface{}{"email": email})
		return nil, false, ErrInvalidCredentials
	}
	s.upgradeHash(ctx, u, password)
	isAdmin := s.admins.IsAdminEmail(u.Email)
	if flag, set := u.AdminFlag(); set {
		isAdmin = flag
	}
	s.events.Record(ctx, telemetrydomain.EventPasswordLogin, u.ID, string(identitydomain.SourceCookieSession), "success", "session", nil)
	return u, isAdmin, nil
}

// upgradeHash re-encodes the password when the stored hash uses an outdated cost. Failures leave
// the old hash in place.
func (s *PasswordLoginService) upgradeHash(ctx context.Context, u *userdomain.User, password string) {
	rh, ok := s.hasher.(rehasher)
	if !ok || !rh.NeedsRehash(u.PasswordHash) {
		return
	}
	store, ok := s.users.(passwordStore)
	if !ok {
		return
	}
	hash, err := rh.Hash(password)
	if err != nil {
		return
	}
	if store.SetPasswordHash(ctx, u.ID, hash) == nil {
		u.PasswordHash = hash
	}
}

// ValidateEmail rejects empty or malformed addresses.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !emailPattern.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidatePassword enforces the operator password policy: at least 12 characters with upper,
// lower, digit and symbol.
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	switch {
	case !hasUpper:
		return errors.New("password must contain at least one uppercase letter")
	case !hasLower:
		return errors.New("password must contain at least one lowercase letter")
	case !hasNumber:
		return errors.New("password must contain at least one number")
	case !hasSymbol:
		return errors.New("password must contain at least one symbol")
	}
	return nil
}
