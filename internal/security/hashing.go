package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and checks back-office operator passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher for cost. Zero selects bcrypt.DefaultCost; other values are clamped
// to bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost reports the work factor new hashes are generated with.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns the bcrypt encoding of password.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Matches reports whether password matches hash. An empty hash never matches, so accounts
// created through phone or OAuth sign-in cannot be used for password login.
func (h *Hasher) Matches(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash was produced with a different cost than h uses.
func (h *Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != h.cost
}
