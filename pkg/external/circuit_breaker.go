package external

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// Circuit breaker defaults for model endpoints.
const (
	DefaultBreakerMaxRequests = 5
	DefaultBreakerInterval    = 30 * time.Second
	DefaultBreakerTimeout     = 60 * time.Second
)

// NewCircuitBreaker builds the breaker guarding one model endpoint. It trips
// once at least three requests were seen in the interval and 60% of them failed.
func NewCircuitBreaker(name string, cfg domain.ModelEndpointConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = DefaultBreakerMaxRequests
	}
	if cfg.BreakerInterval == 0 {
		cfg.BreakerInterval = DefaultBreakerInterval
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = DefaultBreakerTimeout
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}
