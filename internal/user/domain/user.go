package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by mutations that target a user that does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by Upsert when the email belongs to a user with a different id.
	ErrEmailTaken = errors.New("email already belongs to another user")
)

// User is a marketplace account. Phone-verified users have ID "phone_<digits>". OAuth users
// are keyed by the provider subject unless an account with the same email already exists.
type User struct {
	ID        string
	Email     string
	Phone     string
	FirstName string
	LastName  string
	AvatarURL string
	// IsAdmin is the persisted admin flag. Nil means unset; the configured allow-list decides.
	IsAdmin      *bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AdminFlag returns the persisted admin flag and whether it has been set.
func (u *User) AdminFlag() (isAdmin bool, set bool) {
	if u == nil || u.IsAdmin == nil {
		return false, false
	}
	return *u.IsAdmin, true
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" && u.Phone == "" {
		return errors.New("email or phone is required")
	}
	return nil
}

// Bool returns a pointer to b, for setting IsAdmin.
func Bool(b bool) *bool { return &b }
