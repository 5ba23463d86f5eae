package client

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	skyfiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyfi_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	skyfiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skyfi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"error_class"})

	skyfiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyfi_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// maxBackoffShift keeps 2^n from overflowing time.Duration.
const maxBackoffShift = 30

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// BaseDelay is the delay before the first retry. The n-th retry (from 0)
	// waits 2^n × BaseDelay. There is no jitter and no cap.
	BaseDelay time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
	}
}

// Backoff returns the delay before retry n (0-based).
func (c RetryConfig) Backoff(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > maxBackoffShift {
		n = maxBackoffShift
	}
	return c.BaseDelay * time.Duration(1<<uint(n))
}

// retryWithBackoff executes fn until it succeeds, fails with a non-retryable
// class, or MaxAttempts is reached. The backoff wait is a timer raced against
// ctx; once ctx is done no further attempt is made.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func(attempt int) error) error {
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		class := ClassOf(err)

		if !shouldRetry(class) {
			return withAttempts(err, attempt)
		}

		if ctx.Err() != nil {
			return withAttempts(err, attempt)
		}

		if attempt >= maxAttempts {
			break
		}

		backoff := config.Backoff(attempt - 1)
		skyfiRetriesTotal.WithLabelValues(string(class)).Inc()
		skyfiRetryBackoffSeconds.WithLabelValues(string(class)).Observe(backoff.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			cancelled := classifyTransportError(ctx.Err())
			cancelled.Message = "cancelled during retry backoff"
			cancelled.Attempts = attempt
			return cancelled
		case <-timer.C:
			// Continue to next attempt
		}
	}

	class := ClassOf(lastErr)
	skyfiRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	logger.Error().
		Err(lastErr).
		Str("error_class", string(class)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return withAttempts(lastErr, maxAttempts)
}

// withAttempts records the attempt count on an *APIError.
func withAttempts(err error, attempts int) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		apiErr.Attempts = attempts
	}
	return err
}
