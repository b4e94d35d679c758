// Package external holds the HTTP adapters for the model-serving endpoints
// (entity recognizer and severity classifier) and the Redis prediction cache.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
)

// Defaults for model endpoint clients.
const (
	DefaultModelTimeout   = 10 * time.Second
	DefaultModelRateLimit = 10.0
	DefaultModelBurst     = 1
)

// maxErrorBody bounds how much of an error response body is kept in the error message.
const maxErrorBody = 512

// ErrModelUnavailable is returned while a model endpoint's circuit breaker is open.
var ErrModelUnavailable = errors.New("model endpoint unavailable")

// modelClient is the rate limited, circuit broken JSON-over-HTTP transport
// shared by the model adapters.
type modelClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

func newModelClient(name string, cfg domain.ModelEndpointConfig, logger *logrus.Logger, m *metrics.Metrics) (*modelClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%s base URL is required: %w", name, domain.ErrInitialization)
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%s base URL %q is invalid: %w", name, cfg.BaseURL, domain.ErrInitialization)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultModelTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultModelRateLimit
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultModelBurst
	}

	return &modelClient{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		breaker: NewCircuitBreaker(name, cfg, logger),
		logger:  logger,
		metrics: m,
	}, nil
}

// postJSON sends body to path and decodes the JSON response into out.
func (c *modelClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, http.MethodPost, path, body, out)
	})
	c.metrics.ObserveModelRequest(c.name, err, time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %v", c.name, ErrModelUnavailable, err)
	}
	return err
}

func (c *modelClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", c.name, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s returned status %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}
	return nil
}

// health probes GET {base}/health.
func (c *modelClient) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
