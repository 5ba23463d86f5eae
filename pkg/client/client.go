// Package client provides the SkyFi platform API client with rate limiting,
// response caching, retry and error classification.
//
// Every upstream call goes through one pipeline: cache lookup for cacheable
// reads, then a bounded retry loop in which each attempt acquires a rate
// limit token, sends the request with the API key header, classifies the
// outcome and unwraps the response envelope. Successful reads are cached,
// successful mutations invalidate the affected endpoints.
package client

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

	"github.com/Sternrassler/skyfi-gateway/pkg/cache"
	"github.com/Sternrassler/skyfi-gateway/pkg/logging"
	"github.com/Sternrassler/skyfi-gateway/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for SkyFi client operations.
var (
	skyfiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyfi_requests_total",
		Help: "Total SkyFi operations by operation and outcome",
	}, []string{"operation", "status"})

	skyfiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skyfi_request_duration_seconds",
		Help:    "SkyFi operation duration in seconds, including retries",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	skyfiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyfi_errors_total",
		Help: "Total failed SkyFi attempts by error class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the SkyFi platform API root.
	DefaultBaseURL = "https://app.skyfi.com/platform-api"

	// APIKeyHeader carries the credential on every request.
	APIKeyHeader = "X-Skyfi-Api-Key"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 32 << 20
)

// Client is the SkyFi API client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	rateLimiter *ratelimit.Bucket
	cache       *cache.Manager
	retry       RetryConfig
	config      Config
	logger      zerolog.Logger
}

// RateLimitConfig configures the outbound token bucket.
type RateLimitConfig struct {
	Capacity        int
	RefillPerSecond float64
}

// Config holds the client configuration.
type Config struct {
	// APIKey is sent as X-Skyfi-Api-Key (REQUIRED)
	APIKey string

	// BaseURL of the platform API, without trailing slash
	BaseURL string

	// Timeout per HTTP attempt
	Timeout time.Duration

	// Retries is the total number of attempts for retryable failures
	Retries int

	// BackoffBase is the delay before the first retry; later retries double it
	BackoffBase time.Duration

	// RateLimit configures the token bucket shared by all calls
	RateLimit RateLimitConfig

	// Cache backend for responses; an in-memory backend is used when nil
	Cache cache.Backend

	// HTTPClient overrides the transport (tests, proxies). Timeout is applied
	// only when the provided client has none.
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		BaseURL:     DefaultBaseURL,
		Timeout:     30 * time.Second,
		Retries:     3,
		BackoffBase: 1 * time.Second,
		RateLimit: RateLimitConfig{
			Capacity:        ratelimit.DefaultCapacity,
			RefillPerSecond: ratelimit.DefaultRefillPerSecond,
		},
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig(c.APIKey)
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.Retries == 0 {
		c.Retries = def.Retries
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = def.RateLimit.Capacity
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = def.RateLimit.RefillPerSecond
	}
	return c
}

// New creates a new SkyFi client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("base url must be an absolute http(s) URL (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.Retries < 1 {
		return nil, fmt.Errorf("retries must be >= 1 (got %d)", cfg.Retries)
	}
	if cfg.BackoffBase < 0 {
		return nil, fmt.Errorf("backoff base must not be negative (got %s)", cfg.BackoffBase)
	}

	// Initialize logger
	logger := logging.NewLogger(logging.ComponentClient)

	rateLimiter, err := ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	rateLimiter.WithLogger(logging.NewLogger(logging.ComponentRateLimiter))

	backend := cfg.Cache
	if backend == nil {
		backend = cache.NewMemoryBackend()
	}
	cacheManager := cache.NewManager(backend).
		WithLogger(logging.NewLogger(logging.ComponentCache))

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	} else if httpClient.Timeout == 0 {
		clone := *httpClient
		clone.Timeout = cfg.Timeout
		httpClient = &clone
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		retry: RetryConfig{
			MaxAttempts: cfg.Retries,
			BaseDelay:   cfg.BackoffBase,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// request describes one logical API operation.
type request struct {
	operation string
	method    string
	endpoint  string
	query     url.Values
	body      any

	// ttl > 0 marks a cacheable read
	ttl time.Duration

	// invalidate lists endpoints whose cached responses a successful call drops
	invalidate []string

	// clearCache drops the whole cache after a successful call
	clearCache bool
}

// do runs r through the pipeline and decodes the payload into out (may be nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	startTime := time.Now()
	defer func() {
		skyfiRequestDuration.WithLabelValues(r.operation).Observe(time.Since(startTime).Seconds())
	}()

	logger := c.logger.With().
		Str("operation", r.operation).
		Str("endpoint", r.endpoint).
		Logger()

	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return NewValidationError("request body cannot be encoded", err)
		}
		payload = b
	}

	cacheKey := cache.CacheKey{
		Method:   r.method,
		Endpoint: r.endpoint,
		Query:    r.query,
		Body:     payload,
	}
	cacheable := r.ttl > 0

	// Step 1: Check Cache
	if cacheable {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			if decodeErr := decodeInto(entry.Data, out); decodeErr == nil {
				skyfiRequestsTotal.WithLabelValues(r.operation, "cache_hit").Inc()
				return nil
			}
			logger.Warn().Str("cache_key", cacheKey.String()).Msg("Discarding undecodable cache entry")
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	// Step 2: Execute with retry
	var data json.RawMessage
	err := retryWithBackoff(ctx, c.retry, logger, func(attempt int) error {
		result, err := c.attempt(ctx, r, payload, attempt, logger)
		if err != nil {
			return err
		}
		data = result
		return nil
	})
	if err != nil {
		skyfiRequestsTotal.WithLabelValues(r.operation, string(ClassOf(err))).Inc()
		return err
	}

	if err := decodeInto(data, out); err != nil {
		skyfiRequestsTotal.WithLabelValues(r.operation, string(ClassUnknown)).Inc()
		return &APIError{Class: ClassUnknown, Message: "unexpected response payload", Err: err}
	}
	skyfiRequestsTotal.WithLabelValues(r.operation, "success").Inc()

	// Step 3: Update Cache on success
	if cacheable {
		if err := c.cache.Set(ctx, cacheKey, data, r.ttl); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	// Step 4: Invalidate after mutations
	if r.clearCache {
		if err := c.cache.Clear(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to clear cache after mutation")
		}
	} else if len(r.invalidate) > 0 {
		if _, err := c.cache.InvalidateEndpoints(ctx, r.invalidate...); err != nil {
			logger.Warn().Err(err).Strs("endpoints", r.invalidate).Msg("Failed to invalidate cache after mutation")
		}
	}

	return nil
}

// attempt performs a single HTTP exchange and returns the unwrapped payload.
func (c *Client) attempt(ctx context.Context, r request, payload []byte, attempt int, logger zerolog.Logger) (json.RawMessage, error) {
	if err := c.rateLimiter.Acquire(ctx); err != nil {
		apiErr := classifyTransportError(err)
		skyfiErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		return nil, apiErr
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpointURL(r.endpoint, r.query), body)
	if err != nil {
		return nil, &APIError{Class: ClassUnknown, Message: "cannot build request", Err: err}
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger.Debug().
		Str("method", r.method).
		Int("attempt", attempt).
		Msg("Executing SkyFi request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := classifyTransportError(err)
		skyfiErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		logger.Warn().
			Err(err).
			Str("error_class", string(apiErr.Class)).
			Int("attempt", attempt).
			Msg("HTTP request failed")
		return nil, apiErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		apiErr := classifyTransportError(err)
		apiErr.StatusCode = resp.StatusCode
		skyfiErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		return nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := classifyResponse(resp.StatusCode, resp.Header, raw)
		skyfiErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.Class)).
			Int("attempt", attempt).
			Msg("SkyFi request error")
		return nil, apiErr
	}

	decoded, err := decodeResponse(raw)
	if err != nil {
		skyfiErrorsTotal.WithLabelValues(string(ClassUnknown)).Inc()
		return nil, &APIError{
			Class:      ClassUnknown,
			StatusCode: resp.StatusCode,
			Message:    "invalid response body",
			Err:        err,
		}
	}

	data, err := decoded.result()
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.StatusCode = resp.StatusCode
			skyfiErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		}
		return nil, err
	}
	return data, nil
}

// endpointURL joins the base URL, endpoint and query.
func (c *Client) endpointURL(endpoint string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// decodeInto unmarshals data into out. Empty payloads leave out untouched.
func decodeInto(data []byte, out any) error {
	if out == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	return json.Unmarshal(trimmed, out)
}

// ClearCache drops every cached response.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.cache.Clear(ctx)
}

// RateLimitState returns a snapshot of the outbound token bucket.
func (c *Client) RateLimitState() ratelimit.State {
	return c.rateLimiter.State()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetCache returns the cache manager (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
