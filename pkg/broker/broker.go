// Package broker implements a polyglot publish/subscribe facade: a
// transport-agnostic kernel, a per-type subscription registry with
// fan-out dispatch, and the decorator chain (dedup, bulkhead, circuit
// breaker, rate limit, retry, inbox) that wraps it.
package broker

import (
	"context"
	"time"

	"github.com/brokercore/brokercore/pkg/envelope"
)

// PublishOptions configures a single publish call. All fields are
// optional; unspecified fields default per KernelConfig.
type PublishOptions struct {
	RoutingKey    string
	Exchange      string
	Headers       envelope.Headers
	Persistent    bool
	Priority      uint8
	ExpirationMs  int64
	CorrelationID string
	ReplyTo       string
	Mandatory     bool
}

// SubscribeOptions configures a single subscription.
type SubscribeOptions struct {
	RoutingKey    string
	QueueName     string
	ConsumerGroup string
	AutoAck       bool
	PrefetchCount int
	Durable       bool
	Exclusive     bool
}

// DefaultSubscribeOptions matches the spec's auto_ack-default-true
// contract.
func DefaultSubscribeOptions() SubscribeOptions {
	return SubscribeOptions{AutoAck: true}
}

// DeliveryContext is handed to every handler invocation. MessageID,
// Timestamp, RoutingKey, and Headers describe the delivered message;
// the kernel does not fill in Exchange, which is left empty.
// Acknowledge/Reject are the ack protocol callbacks.
type DeliveryContext struct {
	MessageID     string
	CorrelationID string
	Timestamp     time.Time
	RoutingKey    string
	Exchange      string
	Headers       envelope.Headers

	Acknowledge func() error
	Reject      func(requeue bool) error
}

// Handler processes one delivered envelope. When auto_ack is set, an
// error from any handler of the message triggers reject(requeue), and nil
// from every handler triggers acknowledge(); without auto_ack neither is
// called.
type Handler func(ctx context.Context, dc *DeliveryContext, env *envelope.Envelope) error

// Broker is the public contract every decorator and the kernel itself
// implement. Type-safe Publish[T]/Subscribe[T] wrappers live in
// typed.go and encode/decode through a Pipeline before calling these
// type-erased methods.
type Broker interface {
	// PublishEnvelope sends env, synthesizing a MessageID if absent.
	PublishEnvelope(ctx context.Context, env *envelope.Envelope, opts PublishOptions) error

	// SubscribeEnvelope registers handler for messageType. May be called
	// more than once for the same type; all active subscriptions for a
	// type receive every subsequent delivery.
	SubscribeEnvelope(messageType string, handler Handler, opts SubscribeOptions) error

	// Start transitions the broker from inactive to active.
	// Idempotent.
	Start(ctx context.Context) error

	// Stop transitions the broker from active to inactive, retaining
	// subscriptions. Idempotent.
	Stop(ctx context.Context) error

	// Dispose is terminal: it releases all resources. Subsequent calls
	// to the other methods fail with errors.Disposed; a repeated Dispose
	// is a no-op.
	Dispose() error
}
