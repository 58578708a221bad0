// Package decorator implements the broker decorator chain from spec
// §4.J: dedup, bulkhead, circuit breaker, rate limit, retry (publish
// side), and inbox (consume side). Each decorator implements
// broker.Broker and wraps an inner broker.Broker, delegating except
// where it short-circuits.
package decorator

import (
	"context"

	"github.com/brokercore/brokercore/pkg/broker"
	"github.com/brokercore/brokercore/pkg/dedup"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/logger"
)

// Dedup wraps a broker.Broker, dropping publishes whose hash (per the
// configured strategy) has already been seen within the cache's window.
type Dedup struct {
	inner    broker.Broker
	cache    *dedup.Cache
	strategy dedup.Strategy
}

// NewDedup wraps inner with a dedup cache using strategy to compute the
// hash for each outbound envelope.
func NewDedup(inner broker.Broker, cache *dedup.Cache, strategy dedup.Strategy) *Dedup {
	return &Dedup{inner: inner, cache: cache, strategy: strategy}
}

func (d *Dedup) PublishEnvelope(ctx context.Context, env *envelope.Envelope, opts broker.PublishOptions) error {
	hash, err := d.strategy(env)
	if err != nil {
		return err
	}

	isDup, err := d.cache.IsDuplicate(hash)
	if err != nil {
		return err
	}
	if isDup {
		logger.L().DebugContext(ctx, "dropping duplicate publish", "message_id", env.MessageID, "hash", hash)
		return nil
	}

	if err := d.inner.PublishEnvelope(ctx, env, opts); err != nil {
		return err
	}
	return d.cache.Add(hash, 0)
}

func (d *Dedup) SubscribeEnvelope(messageType string, handler broker.Handler, opts broker.SubscribeOptions) error {
	return d.inner.SubscribeEnvelope(messageType, handler, opts)
}

func (d *Dedup) Start(ctx context.Context) error { return d.inner.Start(ctx) }
func (d *Dedup) Stop(ctx context.Context) error  { return d.inner.Stop(ctx) }
func (d *Dedup) Dispose() error {
	_ = d.cache.Dispose()
	return d.inner.Dispose()
}
