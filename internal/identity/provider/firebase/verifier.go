// Package firebase verifies Firebase ID tokens against Google's published keys and mints custom
// tokens with the project's service account.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"bikecare/backend/internal/platform/breaker"
)

const issuerPrefix = "https://securetoken.google.com/"

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("firebase: invalid id token")

// Identity is what a verified ID token vouches for.
type Identity struct {
	UID        string
	Email      string
	Phone      string
	AdminClaim bool
}

type idTokenClaims struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Admin       bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks Firebase ID tokens for one project.
type Verifier struct {
	projectID string
	keys      *keySource
	nowF      func() time.Time
}

// NewVerifier returns a Verifier for projectID. certsURL defaults to GoogleCertsURL.
func NewVerifier(projectID, certsURL string, client *http.Client, logger *zap.Logger) *Verifier {
	if certsURL == "" {
		certsURL = GoogleCertsURL
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	v := &Verifier{projectID: projectID, nowF: time.Now}
	v.keys = &keySource{
		url:    certsURL,
		client: client,
		cb:     breaker.New("firebase-certs", breaker.Settings{}, logger),
		nowF:   func() time.Time { return v.nowF() },
	}
	return v
}

// Verify checks signature, issuer, audience, expiry and subject of idToken.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	var claims idTokenClaims
	_, err := jwt.ParseWithClaims(idToken, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.keys.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.nowF),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || len(claims.Subject) > 128 {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return &Identity{
		UID:        claims.Subject,
		Email:      claims.Email,
		Phone:      claims.PhoneNumber,
		AdminClaim: claims.Admin,
	}, nil
}
