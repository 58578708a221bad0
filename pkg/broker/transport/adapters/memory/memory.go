// Package memory is the in-memory transport.Adapter: the reference
// implementation every other adapter's behavior is tested against, and
// the backend used by the broker package's own test suite.
package memory

import (
	"context"
	"sync"

	"github.com/brokercore/brokercore/pkg/broker/transport"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/errors"
)

type subscriber struct {
	typeKey    string
	routingKey string
	handler    func(transport.Delivery)
}

// Adapter is a process-local transport.Adapter: publish fans the
// envelope out synchronously to every subscriber registered on the same
// routing key.
type Adapter struct {
	mu          sync.Mutex
	subscribers []*subscriber
	active      bool
	disposed    bool
}

// New builds an empty in-memory Adapter.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) PublishRaw(ctx context.Context, env *envelope.Envelope, routingKey string, opts transport.PublishOptions) error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return errors.Disposed("memory transport adapter is disposed")
	}
	subs := make([]*subscriber, 0, len(a.subscribers))
	for _, s := range a.subscribers {
		if s.routingKey == routingKey {
			subs = append(subs, s)
		}
	}
	a.mu.Unlock()

	for _, s := range subs {
		s.handler(transport.Delivery{
			Envelope:    env.Clone(),
			Acknowledge: func() error { return nil },
			Reject:      func(requeue bool) error { return nil },
		})
	}
	return nil
}

func (a *Adapter) SubscribeRaw(ctx context.Context, typeKey string, routingKey string, opts transport.SubscribeOptions, handler func(transport.Delivery)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return errors.Disposed("memory transport adapter is disposed")
	}
	a.subscribers = append(a.subscribers, &subscriber{typeKey: typeKey, routingKey: routingKey, handler: handler})
	return nil
}

func (a *Adapter) StartRaw(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return errors.Disposed("memory transport adapter is disposed")
	}
	a.active = true
	return nil
}

func (a *Adapter) StopRaw(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return errors.Disposed("memory transport adapter is disposed")
	}
	a.active = false
	return nil
}

func (a *Adapter) DisposeRaw() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disposed = true
	a.active = false
	a.subscribers = nil
	return nil
}
