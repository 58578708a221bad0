package decorator

import (
	"context"

	"github.com/brokercore/brokercore/pkg/broker"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/ratelimit"
)

// RateLimit wraps a broker.Broker's publish path with a token-bucket
// ratelimit.Limiter.
type RateLimit struct {
	inner   broker.Broker
	limiter *ratelimit.Limiter
}

// NewRateLimit wraps inner with limiter.
func NewRateLimit(inner broker.Broker, limiter *ratelimit.Limiter) *RateLimit {
	return &RateLimit{inner: inner, limiter: limiter}
}

func (r *RateLimit) PublishEnvelope(ctx context.Context, env *envelope.Envelope, opts broker.PublishOptions) error {
	if err := r.limiter.AcquireOne(ctx); err != nil {
		return err
	}
	return r.inner.PublishEnvelope(ctx, env, opts)
}

func (r *RateLimit) SubscribeEnvelope(messageType string, handler broker.Handler, opts broker.SubscribeOptions) error {
	return r.inner.SubscribeEnvelope(messageType, handler, opts)
}

func (r *RateLimit) Start(ctx context.Context) error { return r.inner.Start(ctx) }
func (r *RateLimit) Stop(ctx context.Context) error  { return r.inner.Stop(ctx) }
func (r *RateLimit) Dispose() error                  { return r.inner.Dispose() }
