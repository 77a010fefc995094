// Package oauth exchanges OAuth authorization codes for the provider's profile claims.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"bikecare/backend/internal/platform/breaker"
)

const callTimeout = 10 * time.Second

var (
	ErrNotConfigured = errors.New("oauth: provider not configured")
	ErrExchange      = errors.New("oauth: code exchange failed")
	ErrProfile       = errors.New("oauth: profile fetch failed")
)

// Config describes the provider endpoints and this app's client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
}

// Profile holds the claims taken from the provider's userinfo endpoint.
type Profile struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// Client talks to one OAuth provider.
type Client struct {
	cfg  Config
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

// NewClient returns a Client. Calls to the provider share one circuit breaker.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: callTimeout}
	}
	return &Client{cfg: cfg, http: httpClient, cb: breaker.New("oauth-provider", breaker.Settings{}, logger)}
}

// Configured reports whether the client has enough settings to run the flow.
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != "" && c.cfg.AuthorizeURL != "" &&
		c.cfg.TokenURL != "" && c.cfg.UserInfoURL != "" && c.cfg.RedirectURL != ""
}

// AuthorizeURL returns the provider URL the browser is sent to.
func (c *Client) AuthorizeURL(state string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	u, err := url.Parse(c.cfg.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("oauth: authorize url: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("state", state)
	if len(c.cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if code == "" {
		return "", fmt.Errorf("%w: empty code", ErrExchange)
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURL)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	res, err := c.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		var tr tokenResponse
		if err := c.doJSON(req, &tr); err != nil {
			return nil, err
		}
		return tr, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchange, err)
	}
	tr := res.(tokenResponse)
	if tr.Error != "" || tr.AccessToken == "" {
		return "", fmt.Errorf("%w: %s", ErrExchange, tr.Error)
	}
	return tr.AccessToken, nil
}

type userInfo struct {
	Sub        string          `json:"sub"`
	ID         json.RawMessage `json:"id"`
	Email      string          `json:"email"`
	Name       string          `json:"name"`
	GivenName  string          `json:"given_name"`
	FamilyName string          `json:"family_name"`
	Picture    string          `json:"picture"`
	AvatarURL  string          `json:"avatar_url"`
}

// Profile fetches the user's claims with accessToken.
func (c *Client) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")
		var ui userInfo
		if err := c.doJSON(req, &ui); err != nil {
			return nil, err
		}
		return ui, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	ui := res.(userInfo)
	p := &Profile{
		Subject:   ui.Sub,
		Email:     strings.ToLower(strings.TrimSpace(ui.Email)),
		FirstName: ui.GivenName,
		LastName:  ui.FamilyName,
		AvatarURL: ui.Picture,
	}
	if p.Subject == "" && len(ui.ID) > 0 {
		p.Subject = strings.Trim(string(ui.ID), `"`)
	}
	if p.AvatarURL == "" {
		p.AvatarURL = ui.AvatarURL
	}
	if p.FirstName == "" && p.LastName == "" && ui.Name != "" {
		first, last, _ := strings.Cut(strings.TrimSpace(ui.Name), " ")
		p.FirstName, p.LastName = first, strings.TrimSpace(last)
	}
	if p.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrProfile)
	}
	return p, nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
