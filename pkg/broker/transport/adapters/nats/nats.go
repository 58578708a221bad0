// Package nats is the lightweight pub/sub transport.Adapter, backed by
// github.com/nats-io/nats.go.
package nats

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/brokercore/brokercore/pkg/broker/transport"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/errors"
)

// Config configures the NATS adapter.
type Config struct {
	URL string `env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`
}

// Adapter implements transport.Adapter over nats.go core pub/sub.
type Adapter struct {
	conn *nats.Conn

	mu       sync.Mutex
	subs     []*nats.Subscription
	disposed bool
}

// New connects to a NATS server.
func New(cfg Config) (*Adapter, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, errors.Transient("failed to connect to nats", err)
	}
	return &Adapter{conn: conn}, nil
}

func (a *Adapter) PublishRaw(ctx context.Context, env *envelope.Envelope, routingKey string, opts transport.PublishOptions) error {
	msg := nats.NewMsg(routingKey)
	msg.Data = env.Payload
	msg.Header.Set("message-id", env.MessageID)
	for k, v := range env.Headers {
		if s, ok := v.(string); ok {
			msg.Header.Set(k, s)
		}
	}
	if err := a.conn.PublishMsg(msg); err != nil {
		return errors.Transient("nats publish failed", err)
	}
	return nil
}

func (a *Adapter) SubscribeRaw(ctx context.Context, typeKey string, routingKey string, opts transport.SubscribeOptions, handler func(transport.Delivery)) error {
	onMsg := func(msg *nats.Msg) {
		env := envelope.New(typeKey, msg.Data)
		for k := range msg.Header {
			_ = env.Headers.Set(k, msg.Header.Get(k))
		}
		env.MessageID = msg.Header.Get("message-id")
		env.RoutingKey = msg.Subject

		handler(transport.Delivery{
			Envelope:    env,
			Acknowledge: func() error { return nil },
			Reject:      func(requeue bool) error { return nil },
		})
	}

	var sub *nats.Subscription
	var err error
	if opts.ConsumerGroup != "" {
		sub, err = a.conn.QueueSubscribe(routingKey, opts.ConsumerGroup, onMsg)
	} else {
		sub, err = a.conn.Subscribe(routingKey, onMsg)
	}
	if err != nil {
		return errors.Permanent("nats subscribe failed", err)
	}

	a.mu.Lock()
	a.subs = append(a.subs, sub)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) StartRaw(ctx context.Context) error { return nil }
func (a *Adapter) StopRaw(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sub := range a.subs {
		_ = sub.Drain()
	}
	return nil
}

func (a *Adapter) DisposeRaw() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return nil
	}
	a.disposed = true
	a.conn.Close()
	return nil
}
