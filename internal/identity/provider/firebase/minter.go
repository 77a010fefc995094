package firebase

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bikecare/backend/internal/security"
)

// CustomTokenAudience is the audience Firebase requires on custom tokens.
const CustomTokenAudience = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"

const customTokenTTL = time.Hour

// ErrNotConfigured is returned by NewTokenMinter when no service-account credentials are set.
var ErrNotConfigured = errors.New("firebase: service account not configured")

// TokenMinter signs custom tokens the client exchanges for a Firebase session.
type TokenMinter struct {
	clientEmail string
	key         *rsa.PrivateKey
	nowF        func() time.Time
}

type customTokenClaims struct {
	UID    string                 `json:"uid"`
	Claims map[string]interface{} `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

// NewTokenMinter parses the service-account private key (inline PEM or file path).
func NewTokenMinter(clientEmail, privateKey string) (*TokenMinter, error) {
	if clientEmail == "" || privateKey == "" {
		return nil, ErrNotConfigured
	}
	key, err := security.ParseRSAPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return &TokenMinter{clientEmail: clientEmail, key: key, nowF: time.Now}, nil
}

// MintCustomToken returns an RS256 custom token for uid carrying developer claims.
func (m *TokenMinter) MintCustomToken(uid string, claims map[string]interface{}) (string, error) {
	if uid == "" || len(uid) > 128 {
		return "", errors.New("firebase: uid must be 1-128 characters")
	}
	now := m.nowF()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, customTokenClaims{
		UID:    uid,
		Claims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.clientEmail,
			Subject:   m.clientEmail,
			Audience:  jwt.ClaimStrings{CustomTokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(customTokenTTL)),
		},
	})
	return tok.SignedString(m.key)
}
