package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/brokercore/brokercore/pkg/ratelimit"
	"github.com/stretchr/testify/suite"
)

type RateLimitSuite struct {
	suite.Suite
}

func (s *RateLimitSuite) TestAcquireWithinCapacity() {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 10, RefillPerSecond: 10})

	for i := 0; i < 10; i++ {
		s.NoError(limiter.Acquire(context.Background(), 1))
	}

	err := limiter.Acquire(context.Background(), 1)
	s.Error(err)
	var exceeded *ratelimit.ExceededError
	s.ErrorAs(err, &exceeded)
}

func (s *RateLimitSuite) TestAcquireRefillsOverTime() {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 10, RefillPerSecond: 100})

	for i := 0; i < 10; i++ {
		s.NoError(limiter.Acquire(context.Background(), 1))
	}

	time.Sleep(50 * time.Millisecond)

	s.NoError(limiter.Acquire(context.Background(), 1))
}

func (s *RateLimitSuite) TestAcquireN() {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 10, RefillPerSecond: 10})

	s.NoError(limiter.Acquire(context.Background(), 5))
	s.NoError(limiter.Acquire(context.Background(), 5))
	s.Error(limiter.Acquire(context.Background(), 1))
}

func (s *RateLimitSuite) TestTokens() {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 10, RefillPerSecond: 10})

	s.InDelta(10.0, limiter.Tokens(), 0.1)
	_ = limiter.Acquire(context.Background(), 3)
	s.InDelta(7.0, limiter.Tokens(), 0.1)
}

func (s *RateLimitSuite) TestAcquireWaitsWithinMaxWait() {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 1, RefillPerSecond: 100, MaxWait: time.Second})
	_ = limiter.Acquire(context.Background(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	s.NoError(limiter.Acquire(ctx, 1))
}

func (s *RateLimitSuite) TestAcquireFailsFastWithoutMaxWait() {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 1, RefillPerSecond: 1})
	_ = limiter.Acquire(context.Background(), 1)

	err := limiter.Acquire(context.Background(), 1)
	var exceeded *ratelimit.ExceededError
	s.ErrorAs(err, &exceeded)
	s.Greater(exceeded.RetryAfter, time.Duration(0))
}

func (s *RateLimitSuite) TestAcquireRespectsContextCancellation() {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 1, RefillPerSecond: 0.1, MaxWait: time.Minute})
	_ = limiter.Acquire(context.Background(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx, 1)
	s.Error(err)
}

func TestRateLimitSuite(t *testing.T) {
	suite.Run(t, new(RateLimitSuite))
}
