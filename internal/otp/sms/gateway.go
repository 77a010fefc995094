package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
)

// GatewayError reports a non-2xx reply from an SMS provider.
type GatewayError struct {
	Provider string
	Status   int
	Body     string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("sms: %s status=%d body=%s", e.Provider, e.Status, e.Body)
}

// deliver sends req and maps any non-2xx status to a GatewayError carrying a bounded body excerpt.
func deliver(client *http.Client, provider string, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: %s request: %w", provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &GatewayError{Provider: provider, Status: resp.StatusCode, Body: string(b)}
}

// guarded fails fast while the provider's circuit is open.
type guarded struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

func (g *guarded) SendCode(ctx context.Context, phone, code string) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.SendCode(ctx, phone, code)
	})
	return err
}
