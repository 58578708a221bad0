package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/brokercore/brokercore/pkg/errors"
)

// CircuitBreaker implements the circuit breaker pattern with a count-bounded
// sliding failure window. Closed tracks recent outcomes and trips to open
// when either the absolute failure count or the failure rate (once
// MinThroughput outcomes have been seen) crosses its threshold. Open admits
// no traffic until BreakDuration elapses, then allows exactly one half-open
// probe at a time.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	mu              sync.Mutex
	state           State
	openedAt        time.Time
	halfOpenBusy    bool
	halfOpenSuccess int64

	window     []bool // true = failure, ring buffer over the sliding window
	windowNext int
	failures   int64 // failures currently present in window
}

// NewCircuitBreaker builds a circuit breaker from cfg, filling in defaults
// for any zero-valued fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.BreakDuration <= 0 {
		cfg.BreakDuration = 30 * time.Second
	}
	if cfg.IsTransient == nil {
		cfg.IsTransient = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		name:   cfg.Name,
		cfg:    cfg,
		state:  StateClosed,
		window: make([]bool, 0, cfg.WindowSize),
	}
}

// Execute runs fn under circuit-breaker protection. Errors the configured
// classifier does not consider transient are returned as-is without
// affecting breaker state.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn Executor) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	if err == nil {
		cb.afterRequest(true)
		return nil
	}

	if !cb.cfg.IsTransient(err) {
		// Not circuit-relevant: release the half-open probe slot (if any)
		// without recording an outcome, and pass the error through.
		cb.mu.Lock()
		cb.halfOpenBusy = false
		cb.mu.Unlock()
		return err
	}

	cb.afterRequest(false)
	return err
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Isolate forces the breaker open, rejecting all traffic until Reset.
func (cb *CircuitBreaker) Isolate() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateOpen)
}

// Reset forces the breaker closed and clears the sliding window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.window = cb.window[:0]
	cb.windowNext = 0
	cb.failures = 0
	cb.setState(StateClosed)
}

// Metrics reports a snapshot of the breaker's current counters.
type Metrics struct {
	State    State
	Total    int64
	Failures int64
	OpenedAt time.Time
	FailRate float64
}

func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	total := int64(len(cb.window))
	var rate float64
	if total > 0 {
		rate = float64(cb.failures) / float64(total)
	}
	return Metrics{State: cb.state, Total: total, Failures: cb.failures, OpenedAt: cb.openedAt, FailRate: rate}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.cfg.BreakDuration {
			cb.setState(StateHalfOpen)
			cb.halfOpenBusy = true
			return nil
		}
		return errors.CircuitOpenErr("circuit "+cb.name+" is open", nil)
	case StateHalfOpen:
		if cb.halfOpenBusy {
			return errors.CircuitOpenErr("circuit "+cb.name+" is half-open and probing", nil)
		}
		cb.halfOpenBusy = true
		return nil
	}
	return nil
}

func (cb *CircuitBreaker) recordOutcome(failure bool) {
	if int64(len(cb.window)) < cb.cfg.WindowSize {
		cb.window = append(cb.window, failure)
		if failure {
			cb.failures++
		}
		return
	}
	evicted := cb.window[cb.windowNext]
	if evicted {
		cb.failures--
	}
	cb.window[cb.windowNext] = failure
	if failure {
		cb.failures++
	}
	cb.windowNext = (cb.windowNext + 1) % len(cb.window)
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.recordOutcome(!success)
		total := int64(len(cb.window))
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.setState(StateOpen)
			return
		}
		if cb.cfg.FailureRateThreshold > 0 && total >= cb.cfg.MinThroughput && cb.cfg.MinThroughput > 0 {
			rate := float64(cb.failures) / float64(total)
			if rate >= cb.cfg.FailureRateThreshold {
				cb.setState(StateOpen)
			}
		}
	case StateHalfOpen:
		cb.halfOpenBusy = false
		if success {
			cb.halfOpenSuccess++
			if cb.halfOpenSuccess >= cb.cfg.SuccessThreshold {
				cb.window = cb.window[:0]
				cb.windowNext = 0
				cb.failures = 0
				cb.setState(StateClosed)
			}
		} else {
			cb.setState(StateOpen)
		}
	}
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state
	cb.halfOpenBusy = false
	cb.halfOpenSuccess = 0

	if state == StateOpen {
		cb.openedAt = time.Now()
	}

	if cb.cfg.OnStateChange != nil {
		go cb.cfg.OnStateChange(cb.name, from, state)
	}
}
