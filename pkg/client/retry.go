package client

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"kind"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// normalized fills zero fields with defaults so a partially set config
// cannot produce a zero-length backoff loop.
func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts < 1 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	return c
}

// backoff computes the waits between retry attempts: exponential growth
// with ±20% jitter, capped at MaxBackoff, and never shorter than a wait
// the server asked for. The rand and sleep hooks exist so tests can drive
// the schedule without wall-clock time.
type backoff struct {
	cfg   RetryConfig
	next  time.Duration
	rand  func() float64
	sleep func(context.Context, time.Duration) error
}

func newBackoff(cfg RetryConfig) *backoff {
	cfg = cfg.normalized()
	return &backoff{
		cfg:   cfg,
		next:  cfg.InitialBackoff,
		rand:  rand.Float64,
		sleep: sleepContext,
	}
}

// delay returns the wait before the next attempt and advances the
// exponential schedule. hint is the server's Retry-After, zero when absent;
// the returned wait is never shorter than it.
func (b *backoff) delay(hint time.Duration) time.Duration {
	// Jitter (±20% randomness) to prevent thundering herd
	d := time.Duration(float64(b.next) * (0.8 + b.rand()*0.4))
	if hint > d {
		d = hint
	}

	b.next = time.Duration(float64(b.next) * b.cfg.BackoffMultiplier)
	if b.next > b.cfg.MaxBackoff {
		b.next = b.cfg.MaxBackoff
	}
	return d
}

// wait sleeps for the next computed delay, observing the backoff metric,
// and returns early when ctx is cancelled.
func (b *backoff) wait(ctx context.Context, hint time.Duration, kind Kind) error {
	d := b.delay(hint)
	retryBackoffSeconds.WithLabelValues(string(kind)).Observe(d.Seconds())
	return b.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter reads a Retry-After header value, which is either a
// number of seconds or an HTTP date. Unparseable or past values yield zero.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
