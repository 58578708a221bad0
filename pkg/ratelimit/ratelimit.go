// Package ratelimit provides a token-bucket rate limiter.
//
// Acquire either takes tokens immediately, waits (bounded by MaxWait) until
// enough tokens refill, or fails with ExceededError carrying RetryAfter and
// ResetAt so callers can surface a Retry-After-style hint.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/brokercore/brokercore/pkg/errors"
)

// Config configures a token-bucket limiter.
type Config struct {
	// Capacity is the bucket size (maximum burst).
	Capacity float64 `env:"RATELIMIT_CAPACITY" env-default:"100"`

	// RefillPerSecond is the token refill rate.
	RefillPerSecond float64 `env:"RATELIMIT_REFILL_PER_SECOND" env-default:"10"`

	// MaxWait bounds how long Acquire will block waiting for tokens before
	// failing with ExceededError. Zero means fail fast with no waiting.
	MaxWait time.Duration `env:"RATELIMIT_MAX_WAIT" env-default:"0"`
}

// ExceededError reports a rejected acquisition, with enough information for
// a caller to build a Retry-After response.
type ExceededError struct {
	*errors.AppError
	RetryAfter time.Duration
	ResetAt    time.Time
}

func newExceeded(retryAfter time.Duration, resetAt time.Time) *ExceededError {
	return &ExceededError{
		AppError:   errors.RateLimited("rate limit exceeded", nil),
		RetryAfter: retryAfter,
		ResetAt:    resetAt,
	}
}

// Limiter is a token-bucket rate limiter safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	cfg        Config
	tokens     float64
	lastRefill time.Time
}

// New builds a Limiter from cfg, defaulting zero-valued fields.
func New(cfg Config) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	if cfg.RefillPerSecond <= 0 {
		cfg.RefillPerSecond = 10
	}
	return &Limiter{
		cfg:        cfg,
		tokens:     cfg.Capacity,
		lastRefill: time.Now(),
	}
}

func (l *Limiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.cfg.RefillPerSecond
	if l.tokens > l.cfg.Capacity {
		l.tokens = l.cfg.Capacity
	}
	l.lastRefill = now
}

// waitForLocked returns how long until n tokens will be available, assuming no
// other acquisition happens in the meantime. Caller must hold l.mu.
func (l *Limiter) waitForLocked(n float64) time.Duration {
	if l.tokens >= n {
		return 0
	}
	deficit := n - l.tokens
	seconds := deficit / l.cfg.RefillPerSecond
	return time.Duration(seconds * float64(time.Second))
}

// Acquire takes n tokens (default 1 via AcquireOne), blocking up to MaxWait
// if insufficient tokens are immediately available. It fails with
// ExceededError if the wait would exceed MaxWait, and with a Cancelled
// error if the context is done first.
func (l *Limiter) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	need := float64(n)

	l.mu.Lock()
	l.refillLocked()
	if l.tokens >= need {
		l.tokens -= need
		l.mu.Unlock()
		return nil
	}
	wait := l.waitForLocked(need)
	resetAt := time.Now().Add(wait)
	if l.cfg.MaxWait <= 0 || wait > l.cfg.MaxWait {
		l.mu.Unlock()
		return newExceeded(wait, resetAt)
	}
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.CancelledErr("rate limit wait cancelled", ctx.Err())
	case <-timer.C:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	if l.tokens >= need {
		l.tokens -= need
		return nil
	}
	// Another acquisition raced ahead of us; fail rather than wait again
	// indefinitely.
	wait = l.waitForLocked(need)
	return newExceeded(wait, time.Now().Add(wait))
}

// AcquireOne is a convenience wrapper for Acquire(ctx, 1).
func (l *Limiter) AcquireOne(ctx context.Context) error {
	return l.Acquire(ctx, 1)
}

// Tokens reports the current token count after applying refill.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.tokens
}
