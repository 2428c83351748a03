// Package ratelimit implements request admission for the catalogue API
// client. A token bucket paces how often requests may start while a
// concurrency gate caps how many are in flight at once. Every outgoing
// request acquires both before touching the network and releases its slot
// when the call completes.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	// AcquireWaitSeconds tracks how long callers wait for admission.
	AcquireWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a request token and concurrency slot",
		Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10},
	})

	// InFlightRequests tracks requests currently holding a concurrency slot.
	InFlightRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_inflight_requests",
		Help: "Number of requests currently admitted and not yet released",
	})
)

// Limiter combines a token bucket with a concurrency gate. The bucket
// refills continuously at the configured rate up to its burst capacity; the
// gate is a fixed pool of slots. A Limiter is shared by all clients talking
// to the same API key and is safe for concurrent use.
type Limiter struct {
	bucket *rate.Limiter
	slots  chan struct{}
}

// New creates a Limiter admitting rps request starts per second with the
// given burst capacity, and at most maxConcurrency requests in flight.
// Values below their minimum are raised to it (rate 1/s, burst 1, one slot).
func New(rps float64, burst, maxConcurrency int) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(rps), burst),
		slots:  make(chan struct{}, maxConcurrency),
	}
}

// Acquire blocks until the caller holds a concurrency slot and a request
// token, or until ctx is done. The slot is claimed first so that a full
// gate never burns tokens; if the token wait is abandoned the slot is
// returned immediately and nothing stays held.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire concurrency slot: %w", ctx.Err())
	}

	if err := l.bucket.Wait(ctx); err != nil {
		<-l.slots
		return fmt.Errorf("acquire request token: %w", err)
	}

	InFlightRequests.Inc()
	AcquireWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// Release returns the concurrency slot taken by Acquire. Calling Release
// without a held slot is a no-op, so callers can defer it unconditionally
// next to error paths.
func (l *Limiter) Release() {
	select {
	case <-l.slots:
		InFlightRequests.Dec()
	default:
	}
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

// MaxConcurrency returns the size of the concurrency gate.
func (l *Limiter) MaxConcurrency() int {
	return cap(l.slots)
}

// Tokens returns the number of request tokens available right now. The
// value never exceeds the burst capacity regardless of how long the bucket
// has been idle.
func (l *Limiter) Tokens() float64 {
	return l.bucket.Tokens()
}

// Burst returns the bucket's burst capacity.
func (l *Limiter) Burst() int {
	return l.bucket.Burst()
}

// SetRate adjusts the refill rate and burst capacity at runtime, for
// example after the operator of the API grants a higher quota.
func (l *Limiter) SetRate(rps float64, burst int) {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	l.bucket.SetLimit(rate.Limit(rps))
	l.bucket.SetBurst(burst)
}
