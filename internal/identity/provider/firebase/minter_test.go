package firebase

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"bikecare/backend/internal/security"
)

func TestTokenMinter(t *testing.T) {
	m, err := NewTokenMinter("svc@bikecare-test.iam.gserviceaccount.com", strings.ReplaceAll(security.TestPrivateKeyPEM(), "\n", `\n`))
	if err != nil {
		t.Fatalf("NewTokenMinter: %v", err)
	}
	raw, err := m.MintCustomToken("phone_966512345678", map[string]interface{}{"phone": "966512345678"})
	if err != nil {
		t.Fatalf("MintCustomToken: %v", err)
	}

	key, _ := security.TestSigner()
	var claims customTokenClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil },
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(CustomTokenAudience),
		jwt.WithIssuer("svc@bikecare-test.iam.gserviceaccount.com"))
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.UID != "phone_966512345678" || claims.Claims["phone"] != "966512345678" {
		t.Errorf("claims = %+v", claims)
	}
	if d := claims.ExpiresAt.Sub(claims.IssuedAt.Time); d != customTokenTTL {
		t.Errorf("lifetime = %v, want %v", d, customTokenTTL)
	}
}

func TestNewTokenMinter_NotConfigured(t *testing.T) {
	if _, err := NewTokenMinter("", ""); err != ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	if _, err := NewTokenMinter("svc@x", "garbage"); err == nil {
		t.Error("want error for unparseable key")
	}
}

func TestMintCustomToken_BadUID(t *testing.T) {
	m, _ := NewTokenMinter("svc@x", security.TestPrivateKeyPEM())
	if _, err := m.MintCustomToken("", nil); err == nil {
		t.Error("want error for empty uid")
	}
	if _, err := m.MintCustomToken(strings.Repeat("a", 129), nil); err == nil {
		t.Error("want error for oversized uid")
	}
}
