package resilience_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/brokercore/brokercore/pkg/resilience"
	"github.com/stretchr/testify/assert"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return stderrors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	attempts := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}, func(ctx context.Context) error {
		attempts++
		return stderrors.New("always fails")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_RetryIfRejectsNonRetryable(t *testing.T) {
	permanent := stderrors.New("permanent")
	attempts := 0

	err := resilience.Retry(context.Background(), resilience.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		RetryIf:        func(err error) bool { return !stderrors.Is(err, permanent) },
	}, func(ctx context.Context) error {
		attempts++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		t.Fatal("should not execute after cancellation")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithCircuitBreaker_OpensAndStopsRetrying(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "retry-cb",
		FailureThreshold: 1,
		BreakDuration:    time.Hour,
	})

	calls := 0
	err := resilience.RetryWithCircuitBreaker(context.Background(), cb, resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}, func(ctx context.Context) error {
		calls++
		return stderrors.New("boom")
	})

	assert.Error(t, err)
	assert.Equal(t, resilience.StateOpen, cb.State())
	assert.Equal(t, 1, calls)
}
