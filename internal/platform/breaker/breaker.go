// Package breaker wraps calls to external identity providers in a circuit breaker so an outage
// fails fast instead of stalling every request that carries a provider token.
package breaker

import (
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Settings tune a breaker. Zero values fall back to defaults.
type Settings struct {
	MaxFailures uint32
	Interval    time.Duration
	OpenTimeout time.Duration
}

// New returns a breaker that opens after MaxFailures consecutive failures (default 5) and probes
// again after OpenTimeout (default 30s).
func New(name string, s Settings, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}
