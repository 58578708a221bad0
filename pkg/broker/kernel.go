package broker

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brokercore/brokercore/pkg/broker/transport"
	"github.com/brokercore/brokercore/pkg/concurrency"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/errors"
	"github.com/brokercore/brokercore/pkg/logger"
	"github.com/google/uuid"
)

// defaultDispatchPoolSize is the worker-pool size used when a
// subscription's PrefetchCount is unset.
const defaultDispatchPoolSize = 8

// KernelConfig configures a Kernel.
type KernelConfig struct {
	DefaultExchange          string `env:"BROKER_DEFAULT_EXCHANGE" env-default:""`
	DefaultRoutingKeyPattern string `env:"BROKER_DEFAULT_ROUTING_KEY_PATTERN" env-default:"{MessageType}"`
}

// Kernel is the innermost Broker implementation: it owns the subscription
// registry and a single transport.Adapter, and implements the fan-out and
// ack protocol. Every decorator wraps a Kernel (directly or
// transitively).
type Kernel struct {
	cfg       KernelConfig
	transport transport.Adapter
	registry  *registry

	mu          sync.Mutex
	active      bool
	disposed    bool
	dispatchPools map[string]*concurrency.WorkerPool
	poolCancels map[string]context.CancelFunc
}

// NewKernel builds a Kernel over adapter.
func NewKernel(adapter transport.Adapter, cfg KernelConfig) *Kernel {
	if cfg.DefaultRoutingKeyPattern == "" {
		cfg.DefaultRoutingKeyPattern = "{MessageType}"
	}
	return &Kernel{
		cfg:           cfg,
		transport:     adapter,
		registry:      newRegistry(),
		dispatchPools: make(map[string]*concurrency.WorkerPool),
		poolCancels:   make(map[string]context.CancelFunc),
	}
}

// resolveRoutingKey substitutes the kernel's pattern tokens unless the
// caller already supplied an explicit routing key.
func resolveRoutingKey(explicit, pattern, messageType string) string {
	if explicit != "" {
		return explicit
	}
	key := pattern
	key = strings.ReplaceAll(key, "{MessageType}", strings.ToLower(messageType))
	key = strings.ReplaceAll(key, "{MessageFullName}", messageType)
	return key
}

// PublishEnvelope validates env, resolves its routing key, synthesizes a
// message_id if absent, and delegates the encoded bytes to the transport.
func (k *Kernel) PublishEnvelope(ctx context.Context, env *envelope.Envelope, opts PublishOptions) error {
	if err := k.checkDisposed(); err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return err
	}

	if env.MessageID == "" {
		env.MessageID = uuid.NewString()
	}
	if opts.CorrelationID != "" {
		env.CorrelationID = opts.CorrelationID
	}
	if env.Headers == nil {
		env.Headers = make(envelope.Headers)
	}
	for key, value := range opts.Headers {
		env.Headers[key] = value
	}

	env.RoutingKey = resolveRoutingKey(opts.RoutingKey, k.cfg.DefaultRoutingKeyPattern, env.MessageType)

	exchange := opts.Exchange
	if exchange == "" {
		exchange = k.cfg.DefaultExchange
	}

	err := k.transport.PublishRaw(ctx, env, env.RoutingKey, transport.PublishOptions{
		Exchange:     exchange,
		Persistent:   opts.Persistent,
		Priority:     opts.Priority,
		ExpirationMs: opts.ExpirationMs,
		ReplyTo:      opts.ReplyTo,
		Mandatory:    opts.Mandatory,
	})
	if err != nil {
		logger.L().ErrorContext(ctx, "broker publish failed", "message_type", env.MessageType, "message_id", env.MessageID, "error", err)
		return err
	}
	return nil
}

// SubscribeEnvelope registers handler for messageType and, the first time
// messageType is seen, asks the transport to start delivering it.
func (k *Kernel) SubscribeEnvelope(messageType string, handler Handler, opts SubscribeOptions) error {
	if err := k.checkDisposed(); err != nil {
		return err
	}
	if messageType == "" {
		return errors.ArgumentInvalid("message type must not be empty", nil)
	}

	isFirst := len(k.registry.subscriptionsFor(messageType)) == 0
	k.registry.add(messageType, &subscription{handler: handler, opts: opts})

	if !isFirst {
		return nil
	}

	poolSize := opts.PrefetchCount
	if poolSize <= 0 {
		poolSize = defaultDispatchPoolSize
	}
	poolCtx, cancel := context.WithCancel(context.Background())
	pool := concurrency.NewWorkerPool(poolSize, poolSize*4)
	pool.Start(poolCtx)

	k.mu.Lock()
	k.dispatchPools[messageType] = pool
	k.poolCancels[messageType] = cancel
	k.mu.Unlock()

	routingKey := resolveRoutingKey(opts.RoutingKey, k.cfg.DefaultRoutingKeyPattern, messageType)
	return k.transport.SubscribeRaw(context.Background(), messageType, routingKey, transport.SubscribeOptions{
		QueueName:     opts.QueueName,
		ConsumerGroup: opts.ConsumerGroup,
		AutoAck:       opts.AutoAck,
		PrefetchCount: opts.PrefetchCount,
		Durable:       opts.Durable,
		Exclusive:     opts.Exclusive,
	}, func(d transport.Delivery) {
		pool.Submit(func(ctx context.Context) {
			k.dispatch(ctx, messageType, d)
		})
	})
}

// dispatch fan-outs one delivered envelope to every active subscription
// for messageType, waits for all to complete, and resolves the transport
// ack protocol. One handler's failure does not prevent its siblings from
// running.
func (k *Kernel) dispatch(ctx context.Context, messageType string, d transport.Delivery) {
	subs := k.registry.subscriptionsFor(messageType)
	if len(subs) == 0 {
		return
	}

	dc := &DeliveryContext{
		MessageID:     d.Envelope.MessageID,
		CorrelationID: d.Envelope.CorrelationID,
		Timestamp:     d.Envelope.Timestamp,
		RoutingKey:    d.Envelope.RoutingKey,
		Headers:       d.Envelope.Headers,
		Acknowledge:   d.Acknowledge,
		Reject:        d.Reject,
	}

	var g errgroup.Group
	var mu sync.Mutex
	var handlerErrs []error
	anyAutoAck := false

	for _, sub := range subs {
		sub := sub
		if sub.opts.AutoAck {
			anyAutoAck = true
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.L().ErrorContext(ctx, "broker handler panicked", "message_type", messageType, "panic", r)
					err = errors.Internal("handler panicked", nil)
				}
				if err != nil {
					mu.Lock()
					handlerErrs = append(handlerErrs, err)
					mu.Unlock()
				}
			}()
			return sub.handler(ctx, dc, d.Envelope)
		})
	}
	_ = g.Wait()

	var firstErr error
	transientFailure := false
	for _, err := range handlerErrs {
		if firstErr == nil {
			firstErr = err
		}
		if errors.Is(err, errors.CodeTransient) {
			transientFailure = true
		}
	}

	if !anyAutoAck {
		return
	}
	if firstErr == nil {
		if dc.Acknowledge != nil {
			if err := dc.Acknowledge(); err != nil {
				logger.L().ErrorContext(ctx, "broker acknowledge failed", "message_type", messageType, "error", err)
			}
		}
		return
	}
	if dc.Reject != nil {
		if err := dc.Reject(transientFailure); err != nil {
			logger.L().ErrorContext(ctx, "broker reject failed", "message_type", messageType, "error", err)
		}
	}
}

func (k *Kernel) Start(ctx context.Context) error {
	if err := k.checkDisposed(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active {
		return nil
	}
	if err := k.transport.StartRaw(ctx); err != nil {
		return err
	}
	k.active = true
	return nil
}

func (k *Kernel) Stop(ctx context.Context) error {
	if err := k.checkDisposed(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.active {
		return nil
	}
	if err := k.transport.StopRaw(ctx); err != nil {
		return err
	}
	k.active = false
	return nil
}

func (k *Kernel) Dispose() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.disposed {
		return nil
	}
	k.disposed = true
	k.active = false
	for _, cancel := range k.poolCancels {
		cancel()
	}
	return k.transport.DisposeRaw()
}

func (k *Kernel) checkDisposed() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.disposed {
		return errors.Disposed("broker kernel is disposed")
	}
	return nil
}
