package decorator

import (
	"context"

	"github.com/brokercore/brokercore/pkg/broker"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/resilience"
)

// Retry wraps a broker.Broker's publish path with exponential backoff
// retry, the outermost decorator in the canonical publish chain.
type Retry struct {
	inner broker.Broker
	cfg   resilience.RetryConfig
}

// NewRetry wraps inner with cfg.
func NewRetry(inner broker.Broker, cfg resilience.RetryConfig) *Retry {
	return &Retry{inner: inner, cfg: cfg}
}

func (r *Retry) PublishEnvelope(ctx context.Context, env *envelope.Envelope, opts broker.PublishOptions) error {
	return resilience.Retry(ctx, r.cfg, func(ctx context.Context) error {
		return r.inner.PublishEnvelope(ctx, env, opts)
	})
}

func (r *Retry) SubscribeEnvelope(messageType string, handler broker.Handler, opts broker.SubscribeOptions) error {
	return r.inner.SubscribeEnvelope(messageType, handler, opts)
}

func (r *Retry) Start(ctx context.Context) error { return r.inner.Start(ctx) }
func (r *Retry) Stop(ctx context.Context) error  { return r.inner.Stop(ctx) }
func (r *Retry) Dispose() error                  { return r.inner.Dispose() }
