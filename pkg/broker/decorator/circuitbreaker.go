package decorator

import (
	"context"

	"github.com/brokercore/brokercore/pkg/broker"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/resilience"
)

// CircuitBreaker wraps a broker.Broker's publish path with a
// resilience.CircuitBreaker. Subscribe and lifecycle calls pass through
// unchanged: the circuit breaker guards publish only, per §4.J's
// canonical order.
type CircuitBreaker struct {
	inner broker.Broker
	cb    *resilience.CircuitBreaker
}

// NewCircuitBreaker wraps inner with cb.
func NewCircuitBreaker(inner broker.Broker, cb *resilience.CircuitBreaker) *CircuitBreaker {
	return &CircuitBreaker{inner: inner, cb: cb}
}

func (c *CircuitBreaker) PublishEnvelope(ctx context.Context, env *envelope.Envelope, opts broker.PublishOptions) error {
	return c.cb.Execute(ctx, func(ctx context.Context) error {
		return c.inner.PublishEnvelope(ctx, env, opts)
	})
}

func (c *CircuitBreaker) SubscribeEnvelope(messageType string, handler broker.Handler, opts broker.SubscribeOptions) error {
	return c.inner.SubscribeEnvelope(messageType, handler, opts)
}

func (c *CircuitBreaker) Start(ctx context.Context) error { return c.inner.Start(ctx) }
func (c *CircuitBreaker) Stop(ctx context.Context) error  { return c.inner.Stop(ctx) }
func (c *CircuitBreaker) Dispose() error                  { return c.inner.Dispose() }
