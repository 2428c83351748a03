// Package client provides the core catalogue HTTP client with rate
// limiting, caching, retries and error handling. Every request flows
// through the same pipeline: validate, consult the cache, acquire the rate
// limiter, perform the HTTP call with retries, classify failures and store
// successful bodies back in the cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harvestlib/catalog-client/pkg/cache"
	"github.com/harvestlib/catalog-client/pkg/catalog"
	"github.com/harvestlib/catalog-client/pkg/ratelimit"
)

// Prometheus metrics for catalogue client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalogue requests by endpoint and outcome",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalogue request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalogue errors by kind",
	}, []string{"kind"})
)

// maxResponseBytes caps how much of a response body is read. Search pages
// are modest; anything near this limit is a misbehaving endpoint.
const maxResponseBytes = 32 << 20

// Config holds the client configuration.
type Config struct {
	// BaseURL is the root of the catalogue API (scheme and host).
	BaseURL string

	// APIKey authenticates every request, sent as the X-API-Key header.
	APIKey string

	// UserAgent identifies this consumer to the API operator.
	UserAgent string

	// Store is the cache backend. Leave nil for an in-memory cache; use
	// cache.NewNopStore() to disable caching.
	Store cache.Store

	// TTL picks cache lifetimes by response content. The zero value
	// disables caching of responses; use cache.DefaultTTLPolicy().
	TTL cache.TTLPolicy

	// Limiter paces requests. Leave nil to build one from RateLimit,
	// Burst and MaxConcurrency; pass a shared instance when several
	// clients use the same API key.
	Limiter *ratelimit.Limiter

	// RateLimit is the sustained request rate per second.
	RateLimit float64

	// Burst is the token bucket capacity.
	Burst int

	// MaxConcurrency caps requests in flight.
	MaxConcurrency int

	// RequestTimeout bounds each HTTP attempt.
	RequestTimeout time.Duration

	// Retry configures the backoff schedule for transient failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration for the given API
// endpoint and key.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		UserAgent:      "catalog-client/1.0",
		TTL:            cache.DefaultTTLPolicy(),
		RateLimit:      5,
		Burst:          10,
		MaxConcurrency: 4,
		RequestTimeout: 30 * time.Second,
		Retry:          DefaultRetryConfig(),
	}
}

// Client is the catalogue API client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	store      cache.Store
	ownsStore  bool
	limiter    *ratelimit.Limiter
	config     Config
	logger     zerolog.Logger
}

// New creates a catalogue client. The cache store and rate limiter are
// created once here (or injected via Config) and shared across every
// request the client makes.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &Error{Kind: KindConfiguration, Message: "base URL is required"}
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &Error{Kind: KindConfiguration, Message: fmt.Sprintf("base URL %q is not an absolute URL", cfg.BaseURL), Err: err}
	}
	if cfg.APIKey == "" {
		return nil, &Error{Kind: KindConfiguration, Message: "API key is required"}
	}
	if cfg.UserAgent == "" {
		return nil, &Error{Kind: KindConfiguration, Message: "user agent is required"}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	cfg.Retry = cfg.Retry.normalized()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.New(cfg.RateLimit, cfg.Burst, cfg.MaxConcurrency)
	}

	store := cfg.Store
	ownsStore := false
	if store == nil {
		store = cache.NewMemoryStore()
		ownsStore = true
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		store:     store,
		ownsStore: ownsStore,
		limiter:   limiter,
		config:    cfg,
		logger:    logger,
	}, nil
}

// Get performs a GET request against path with the given query parameters
// and returns the raw response body. Cached responses are served without
// consuming a rate limit token; everything else acquires the limiter,
// performs the HTTP call with retries and caches the result.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.checkRequest(path, params); err != nil {
		return nil, err
	}

	// Step 1: Check the cache. Hits bypass the rate limiter entirely.
	key := cache.Key{Path: path, Params: params}
	entry, err := c.store.Get(ctx, key)
	if err == nil {
		requestsTotal.WithLabelValues(path, "cache_hit").Inc()
		c.logger.Debug().
			Str("endpoint", path).
			Msg("Cache hit")
		return entry.Data, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// Degrade a broken cache to a miss rather than failing the request.
		c.logger.Warn().Err(err).Str("endpoint", path).Msg("Cache get error")
	}

	// Step 2: Acquire admission (token bucket + concurrency slot).
	if err := c.limiter.Acquire(ctx); err != nil {
		requestsTotal.WithLabelValues(path, "not_admitted").Inc()
		return nil, err
	}
	defer c.limiter.Release()

	// Step 3: Perform the HTTP call with retries.
	body, err := c.doWithRetry(ctx, path, params)
	if err != nil {
		return nil, err
	}

	// Step 4: Store the response under a content-derived TTL.
	ttl := c.config.TTL.For(path, body, params.Get("bulkHarvest") == "true")
	if ttl > 0 {
		if err := c.store.Set(ctx, key, cache.NewEntry(body, http.StatusOK, ttl)); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", path).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", path).
				Dur("ttl", ttl).
				Msg("Cached response")
		}
	}

	return body, nil
}

// GetJSON performs Get and unmarshals the body into v.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, v any) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// checkRequest rejects requests that the API would refuse, before they
// cost a token.
func (c *Client) checkRequest(path string, params url.Values) error {
	if path == "" || !strings.HasPrefix(path, "/") {
		return &Error{Kind: KindValidation, Path: path, Message: "path must start with /"}
	}
	if path == catalog.SearchPath && params.Get("category") == "" {
		return &Error{Kind: KindValidation, Path: path, Message: "category parameter is required for search requests"}
	}
	return nil
}

// doWithRetry runs the attempt loop. Only transient failures are retried;
// the wait between attempts follows the backoff schedule and any server
// hint, whichever is longer.
func (c *Client) doWithRetry(ctx context.Context, path string, params url.Values) ([]byte, error) {
	b := newBackoff(c.config.Retry)

	var lastErr error
	lastKind := KindNetwork

	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		body, err := c.roundTrip(ctx, path, params)
		if err == nil {
			requestsTotal.WithLabelValues(path, "200").Inc()
			if attempt > 1 {
				c.logger.Info().
					Str("endpoint", path).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return body, nil
		}
		lastErr = err

		kind := KindNetwork
		hint := time.Duration(0)
		status := "network_error"
		var apiErr *Error
		if errors.As(err, &apiErr) {
			kind = apiErr.Kind
			hint = apiErr.RetryAfter
			if apiErr.StatusCode > 0 {
				status = strconv.Itoa(apiErr.StatusCode)
			}
		}
		lastKind = kind
		requestsTotal.WithLabelValues(path, status).Inc()
		errorsTotal.WithLabelValues(string(kind)).Inc()

		if !kind.Retryable() {
			c.logger.Warn().
				Str("endpoint", path).
				Str("kind", string(kind)).
				Msg("Request failed")
			return nil, err
		}

		if attempt >= b.cfg.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(kind)).Inc()
		c.logger.Debug().
			Str("endpoint", path).
			Str("kind", string(kind)).
			Int("attempt", attempt).
			Dur("retry_after_hint", hint).
			Msg("Retrying request after backoff")

		if err := b.wait(ctx, hint, kind); err != nil {
			c.logger.Warn().
				Str("endpoint", path).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return nil, err
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastKind)).Inc()
	c.logger.Warn().
		Str("endpoint", path).
		Int("max_attempts", b.cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, b.cfg.MaxAttempts, lastErr)
}

// roundTrip performs one HTTP attempt and maps failures onto the error
// taxonomy.
func (c *Client) roundTrip(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.config.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Path: path, Message: "build request", Err: err}
	}
	req.Header.Set("X-API-Key", c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Path: path, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, StatusCode: resp.StatusCode, Path: path, Message: "read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp, body, path)
	}
	return body, nil
}

// errorFromResponse builds a classified error from a non-200 response,
// folding in the API's error envelope and any Retry-After hint.
func (c *Client) errorFromResponse(resp *http.Response, body []byte, path string) *Error {
	apiErr := &Error{
		Kind:       classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Path:       path,
		Message:    http.StatusText(resp.StatusCode),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
	if envelope, ok := catalog.ParseErrorBody(body); ok {
		if envelope.StatusText != "" {
			apiErr.Message = envelope.StatusText
		}
		apiErr.Description = envelope.Description
	}
	return apiErr
}

// Close releases resources the client created itself. An injected cache
// store stays open for its owner.
func (c *Client) Close() error {
	if c.ownsStore {
		return c.store.Close()
	}
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Store returns the cache store (for testing).
func (c *Client) Store() cache.Store {
	return c.store
}

// Limiter returns the rate limiter, so callers can inspect admission state.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}
