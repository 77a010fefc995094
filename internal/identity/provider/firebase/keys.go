package firebase

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"bikecare/backend/internal/security"
)

// GoogleCertsURL publishes the certificates that sign Firebase ID tokens.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const defaultKeyTTL = time.Hour

var (
	errUnknownKey = errors.New("firebase: unknown signing key")
	maxAgeRe      = regexp.MustCompile(`max-age=(\d+)`)
)

// keySource fetches and caches the provider's public keys, honouring Cache-Control max-age.
// Fetches run outside mu and concurrent refreshes share one request. When a refresh fails the
// last good key set keeps serving until a later refresh succeeds.
type keySource struct {
	url    string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	group  singleflight.Group

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
	nowF    func() time.Time
}

func (s *keySource) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	keys, fresh := s.cached()
	if !fresh {
		refreshed, err := s.refresh(ctx)
		if err != nil && keys == nil {
			return nil, err
		}
		if err == nil {
			keys = refreshed
		}
	}
	k, ok := keys[kid]
	if !ok {
		return nil, errUnknownKey
	}
	return k, nil
}

func (s *keySource) cached() (map[string]*rsa.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys, s.keys != nil && s.nowF().Before(s.expires)
}

func (s *keySource) refresh(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	v, err, _ := s.group.Do("certs", func() (interface{}, error) {
		if keys, fresh := s.cached(); fresh {
			return keys, nil
		}
		res, err := s.cb.Execute(func() (interface{}, error) {
			return s.fetch(ctx)
		})
		if err != nil {
			return nil, err
		}
		f := res.(fetched)
		s.mu.Lock()
		s.keys = f.keys
		s.expires = s.nowF().Add(f.ttl)
		s.mu.Unlock()
		return f.keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]*rsa.PublicKey), nil
}

type fetched struct {
	keys map[string]*rsa.PublicKey
	ttl  time.Duration
}

func (s *keySource) fetch(ctx context.Context) (fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fetched{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fetched{}, fmt.Errorf("firebase: fetch certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fetched{}, fmt.Errorf("firebase: fetch certs: status=%d", resp.StatusCode)
	}
	var certs map[string]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&certs); err != nil {
		return fetched{}, fmt.Errorf("firebase: decode certs: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemCert := range certs {
		pub, err := security.ParseRSAPublicKey(pemCert)
		if err != nil {
			continue
		}
		keys[kid] = pub
	}
	if len(keys) == 0 {
		return fetched{}, errors.New("firebase: no usable certs")
	}
	return fetched{keys: keys, ttl: maxAge(resp.Header.Get("Cache-Control"))}, nil
}

func maxAge(cacheControl string) time.Duration {
	m := maxAgeRe.FindStringSubmatch(cacheControl)
	if m == nil {
		return defaultKeyTTL
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil || secs <= 0 {
		return defaultKeyTTL
	}
	return time.Duration(secs) * time.Second
}
