package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for the outbound token bucket.
var (
	rateLimitAcquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skyfi_rate_limit_acquires_total",
		Help: "Total number of tokens acquired for outbound SkyFi requests",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skyfi_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit token",
		Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Bucket is a token bucket shared by every outbound call of a client.
// Tokens refill continuously at RefillPerSecond up to Capacity.
type Bucket struct {
	limiter  *rate.Limiter
	capacity int
	refill   float64
	logger   zerolog.Logger
}

// New creates a full bucket with the given capacity and refill rate.
func New(capacity int, refillPerSecond float64) (*Bucket, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("capacity must be >= 1 (got %d)", capacity)
	}
	if refillPerSecond <= 0 || math.IsNaN(refillPerSecond) || math.IsInf(refillPerSecond, 0) {
		return nil, fmt.Errorf("refill rate must be a positive number (got %v)", refillPerSecond)
	}

	return &Bucket{
		limiter:  rate.NewLimiter(rate.Limit(refillPerSecond), capacity),
		capacity: capacity,
		refill:   refillPerSecond,
		logger:   zerolog.Nop(),
	}, nil
}

// WithLogger sets the logger used for wait diagnostics.
func (b *Bucket) WithLogger(logger zerolog.Logger) *Bucket {
	b.logger = logger
	return b
}

// Acquire blocks until a token is available and consumes it.
// It returns the context error if ctx ends first; no token is consumed then.
func (b *Bucket) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := b.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Wait refuses up front when the deadline is closer than the next token.
		return fmt.Errorf("acquire token: %w", context.DeadlineExceeded)
	}

	waited := time.Since(start)
	rateLimitAcquiresTotal.Inc()
	rateLimitWaitSeconds.Observe(waited.Seconds())

	if waited > time.Millisecond {
		b.logger.Debug().
			Dur("waited", waited).
			Msg("Rate limit token acquired after wait")
	}
	return nil
}

// State returns a snapshot of the bucket.
func (b *Bucket) State() State {
	now := time.Now()
	tokens := b.limiter.TokensAt(now)
	if tokens < 0 {
		// Reservations still pending drive the limiter negative; nobody can use those.
		tokens = 0
	}
	if tokens > float64(b.capacity) {
		tokens = float64(b.capacity)
	}
	return State{
		Capacity:        b.capacity,
		Tokens:          tokens,
		RefillPerSecond: b.refill,
		ObservedAt:      now,
	}
}
