// Package transport defines the Adapter contract: the thin boundary
// between the kernel and a concrete backend (Kafka, RabbitMQ,
// NATS, Kinesis, GCP Pub/Sub, or an in-memory reference). Adapters own
// connection lifecycle, native ack/nack, and partition/offset bookkeeping;
// they must never touch serialization, dedup, or bulkhead state, and must
// translate native errors into Transient, Permanent, or Cancelled.
package transport

import (
	"context"

	"github.com/brokercore/brokercore/pkg/envelope"
)

// Delivery is one inbound message handed from the adapter to the kernel,
// plus the transport-native ack/nack callbacks for it.
type Delivery struct {
	Envelope *envelope.Envelope

	// Acknowledge confirms successful processing to the transport.
	Acknowledge func() error

	// Reject negatively acknowledges the message. If requeue is true the
	// transport should make the message available for redelivery.
	Reject func(requeue bool) error
}

// PublishOptions carries transport-specific publish tuning that does not
// belong on the envelope itself.
type PublishOptions struct {
	Exchange     string
	Persistent   bool
	Priority     uint8
	ExpirationMs int64
	ReplyTo      string
	Mandatory    bool
}

// SubscribeOptions carries transport-specific subscribe tuning.
type SubscribeOptions struct {
	QueueName     string
	ConsumerGroup string
	AutoAck       bool
	PrefetchCount int
	Durable       bool
	Exclusive     bool
}

// Adapter is the contract every concrete backend implements. The kernel is
// the only caller; it never exposes Adapter to users directly.
type Adapter interface {
	// PublishRaw sends one already-encoded envelope to routingKey.
	PublishRaw(ctx context.Context, env *envelope.Envelope, routingKey string, opts PublishOptions) error

	// SubscribeRaw declares interest in typeKey under routingKey and
	// delivers each inbound message to handler. The kafka, kinesis and
	// nats adapters stop delivering on StopRaw; the memory, rabbitmq and
	// gcppubsub adapters keep delivering after StopRaw until DisposeRaw.
	SubscribeRaw(ctx context.Context, typeKey string, routingKey string, opts SubscribeOptions, handler func(Delivery)) error

	// StartRaw transitions the adapter from inactive to active.
	// Idempotent: a second call while active is a no-op.
	StartRaw(ctx context.Context) error

	// StopRaw transitions the adapter from active to inactive, retaining
	// subscriptions. Idempotent.
	StopRaw(ctx context.Context) error

	// DisposeRaw is terminal: it releases all resources. Only the memory
	// adapter rejects later calls with errors.Disposed; the other
	// adapters do not check for disposal.
	DisposeRaw() error
}
