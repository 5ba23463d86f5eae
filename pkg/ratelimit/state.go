// Package ratelimit implements the token bucket that throttles outbound
// SkyFi requests. Every upstream attempt, including retries, must acquire a
// token before it is sent.
package ratelimit

import (
	"time"
)

// Defaults used when the caller does not configure the bucket.
const (
	// DefaultCapacity is the maximum number of tokens the bucket can hold.
	DefaultCapacity = 10

	// DefaultRefillPerSecond is the continuous refill rate.
	DefaultRefillPerSecond = 5.0
)

// State is a point-in-time snapshot of the bucket.
type State struct {
	// Capacity is the maximum number of tokens (C).
	Capacity int `json:"capacity"`

	// Tokens is the number of tokens available at ObservedAt.
	// Always within [0, Capacity].
	Tokens float64 `json:"tokens"`

	// RefillPerSecond is the refill rate (R).
	RefillPerSecond float64 `json:"refill_per_second"`

	// ObservedAt is when the snapshot was taken.
	ObservedAt time.Time `json:"observed_at"`
}

// IsEmpty returns true if a caller acquiring now would have to wait.
func (s State) IsEmpty() bool {
	return s.Tokens < 1
}

// TimeUntilToken returns how long until at least one token is available.
// Returns 0 if a token is available now.
func (s State) TimeUntilToken() time.Duration {
	if !s.IsEmpty() || s.RefillPerSecond <= 0 {
		return 0
	}
	missing := 1 - s.Tokens
	return time.Duration(missing / s.RefillPerSecond * float64(time.Second))
}
