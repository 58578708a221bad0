package broker

import (
	"context"

	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/serialization"
)

// TypedHandler processes a decoded value of type T.
type TypedHandler[T any] func(ctx context.Context, dc *DeliveryContext, msg T) error

// Publish encodes v through pipeline and publishes it under messageType.
// Encode/decode stays above the kernel, which only ever sees type-erased
// envelopes; callers get a decoder closure pre-bound to the concrete
// type instead.
func Publish[T any](ctx context.Context, b Broker, pipeline *serialization.Pipeline, messageType string, v T, opts PublishOptions) error {
	env, err := pipeline.Encode(messageType, v)
	if err != nil {
		return err
	}
	return b.PublishEnvelope(ctx, env, opts)
}

// Subscribe registers a TypedHandler[T] for messageType, decoding each
// delivered envelope through pipeline before invoking handler.
func Subscribe[T any](b Broker, pipeline *serialization.Pipeline, messageType string, handler TypedHandler[T], opts SubscribeOptions) error {
	return b.SubscribeEnvelope(messageType, func(ctx context.Context, dc *DeliveryContext, env *envelope.Envelope) error {
		msg, err := serialization.Decode[T](pipeline, env)
		if err != nil {
			return err
		}
		return handler(ctx, dc, msg)
	}, opts)
}
