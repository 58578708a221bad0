package decorator

import (
	"context"

	"github.com/brokercore/brokercore/pkg/broker"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/inbox"
	"github.com/brokercore/brokercore/pkg/logger"
)

// Inbox wraps a broker.Broker's subscribe path: on delivery, if
// (message_id, consumer) already exists in the store, the message is
// acknowledged and the handler is skipped; otherwise the handler runs,
// and on success the pair is stored. On handler failure nothing is
// stored, letting the transport redeliver.
type Inbox struct {
	inner    broker.Broker
	store    inbox.Store
	consumer string
}

// NewInbox wraps inner with store, recording processed pairs under
// consumer.
func NewInbox(inner broker.Broker, store inbox.Store, consumer string) *Inbox {
	return &Inbox{inner: inner, store: store, consumer: consumer}
}

func (i *Inbox) PublishEnvelope(ctx context.Context, env *envelope.Envelope, opts broker.PublishOptions) error {
	return i.inner.PublishEnvelope(ctx, env, opts)
}

func (i *Inbox) SubscribeEnvelope(messageType string, handler broker.Handler, opts broker.SubscribeOptions) error {
	wrapped := func(ctx context.Context, dc *broker.DeliveryContext, env *envelope.Envelope) error {
		exists, err := i.store.Exists(ctx, dc.MessageID, i.consumer)
		if err != nil {
			return err
		}
		if exists {
			logger.L().DebugContext(ctx, "inbox skipping already-processed message", "message_id", dc.MessageID, "consumer", i.consumer)
			return nil
		}

		if err := handler(ctx, dc, env); err != nil {
			return err
		}

		return i.store.Store(ctx, inbox.Record{
			MessageID:    dc.MessageID,
			MessageType:  messageType,
			ConsumerName: i.consumer,
		})
	}
	return i.inner.SubscribeEnvelope(messageType, wrapped, opts)
}

func (i *Inbox) Start(ctx context.Context) error { return i.inner.Start(ctx) }
func (i *Inbox) Stop(ctx context.Context) error  { return i.inner.Stop(ctx) }
func (i *Inbox) Dispose() error {
	_ = i.store.Close()
	return i.inner.Dispose()
}
