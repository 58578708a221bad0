package decorator

import (
	"context"

	"github.com/brokercore/brokercore/pkg/broker"
	"github.com/brokercore/brokercore/pkg/bulkhead"
	"github.com/brokercore/brokercore/pkg/envelope"
)

// Bulkhead wraps a broker.Broker, bounding concurrent publishes (and, via
// its consume-side counterpart, concurrent handler executions) through a
// shared bulkhead.Bulkhead.
type Bulkhead struct {
	inner broker.Broker
	bh    *bulkhead.Bulkhead
}

// NewBulkhead wraps inner with bh.
func NewBulkhead(inner broker.Broker, bh *bulkhead.Bulkhead) *Bulkhead {
	return &Bulkhead{inner: inner, bh: bh}
}

func (b *Bulkhead) PublishEnvelope(ctx context.Context, env *envelope.Envelope, opts broker.PublishOptions) error {
	_, err := bulkhead.Execute(ctx, b.bh, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.inner.PublishEnvelope(ctx, env, opts)
	})
	return err
}

// SubscribeEnvelope wraps handler so each delivered message runs under
// bulkhead protection too, matching the consume-side order of §4.J
// (transport -> kernel -> bulkhead -> inbox -> handler).
func (b *Bulkhead) SubscribeEnvelope(messageType string, handler broker.Handler, opts broker.SubscribeOptions) error {
	wrapped := func(ctx context.Context, dc *broker.DeliveryContext, env *envelope.Envelope) error {
		_, err := bulkhead.Execute(ctx, b.bh, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, handler(ctx, dc, env)
		})
		return err
	}
	return b.inner.SubscribeEnvelope(messageType, wrapped, opts)
}

func (b *Bulkhead) Start(ctx context.Context) error { return b.inner.Start(ctx) }
func (b *Bulkhead) Stop(ctx context.Context) error  { return b.inner.Stop(ctx) }
func (b *Bulkhead) Dispose() error                  { return b.inner.Dispose() }
