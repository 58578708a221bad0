// Package resilience provides patterns for building resilient systems.
//
// This package includes:
//   - Circuit Breaker: Prevents cascading failures, with a sliding failure
//     window and a transient-failure classifier
//   - Retry: Automatic retries with backoff
//   - Timeout: Request deadline enforcement
package resilience

import (
	"context"
	"time"
)

// State represents the current state of a circuit breaker.
type State string

const (
	StateClosed   State = "closed"    // Normal operation, tracking failures
	StateOpen     State = "open"      // Blocking requests, fast-fail
	StateHalfOpen State = "half_open" // Testing if service has recovered
)

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker (for logging/metrics).
	Name string

	// FailureThreshold is the absolute failure count within the sliding
	// window that trips the breaker.
	FailureThreshold int64

	// FailureRateThreshold is the failure ratio (0..1) within the sliding
	// window that trips the breaker, provided MinThroughput is also met.
	// Zero disables rate-based tripping.
	FailureRateThreshold float64

	// MinThroughput is the minimum number of recorded outcomes before
	// FailureRateThreshold is evaluated.
	MinThroughput int64

	// WindowSize bounds the number of recent outcomes the sliding window
	// retains. Older outcomes are evicted as new ones arrive.
	WindowSize int64

	// SuccessThreshold is successes needed in half-open to close.
	SuccessThreshold int64

	// BreakDuration is how long to stay open before allowing a probe.
	BreakDuration time.Duration

	// IsTransient classifies an error as circuit-relevant. Errors the
	// classifier rejects (e.g. argument errors) pass through without
	// updating the breaker's counters or state.
	IsTransient func(error) bool

	// OnStateChange is called when the circuit breaker changes state.
	OnStateChange func(name string, from, to State)
}

// Executor represents an operation that can be protected by resilience
// decorators.
type Executor func(ctx context.Context) error

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the backoff duration for the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration

	// Multiplier increases the backoff between retries.
	Multiplier float64

	// Jitter adds randomness to prevent thundering herd.
	Jitter float64

	// RetryIf determines if an error should be retried.
	RetryIf func(error) bool
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		WindowSize:       20,
		SuccessThreshold: 2,
		BreakDuration:    30 * time.Second,
		IsTransient:      func(err error) bool { return err != nil },
	}
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
		RetryIf:        func(err error) bool { return err != nil },
	}
}
