// Package gcppubsub is the cloud queue+topic-pair transport.Adapter,
// backed by cloud.google.com/go/pubsub/v2's Publisher/Subscriber split.
package gcppubsub

import (
	"context"
	"sync"

	"cloud.google.com/go/pubsub/v2"

	"github.com/brokercore/brokercore/pkg/broker/transport"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/errors"
)

// Config configures the GCP Pub/Sub adapter.
type Config struct {
	ProjectID string `env:"GCP_PROJECT_ID"`
}

// Adapter implements transport.Adapter over a paired Pub/Sub topic and
// subscription per routing key.
type Adapter struct {
	client *pubsub.Client

	mu          sync.Mutex
	publishers  map[string]*pubsub.Publisher
	subscribers []*pubsub.Subscriber
	cancel      context.CancelFunc
}

// New builds a Pub/Sub client for projectID.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, errors.Permanent("failed to create pubsub client", err)
	}
	return &Adapter{client: client, publishers: make(map[string]*pubsub.Publisher)}, nil
}

func (a *Adapter) publisherFor(topicID string) *pubsub.Publisher {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.publishers[topicID]; ok {
		return p
	}
	p := a.client.Publisher(topicID)
	a.publishers[topicID] = p
	return p
}

func (a *Adapter) PublishRaw(ctx context.Context, env *envelope.Envelope, routingKey string, opts transport.PublishOptions) error {
	attrs := map[string]string{"message-id": env.MessageID}
	for k, v := range env.Headers {
		if s, ok := v.(string); ok {
			attrs[k] = s
		}
	}

	result := a.publisherFor(routingKey).Publish(ctx, &pubsub.Message{
		Data:        env.Payload,
		OrderingKey: env.MessageID,
		Attributes:  attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return errors.Transient("pubsub publish failed", err)
	}
	return nil
}

func (a *Adapter) SubscribeRaw(ctx context.Context, typeKey string, routingKey string, opts transport.SubscribeOptions, handler func(transport.Delivery)) error {
	subID := opts.QueueName
	if subID == "" {
		subID = routingKey
	}
	sub := a.client.Subscriber(subID)

	a.mu.Lock()
	a.subscribers = append(a.subscribers, sub)
	a.mu.Unlock()

	go func() {
		_ = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
			env := envelope.New(typeKey, msg.Data)
			for k, v := range msg.Attributes {
				_ = env.Headers.Set(k, v)
			}
			env.MessageID = msg.Attributes["message-id"]
			env.RoutingKey = routingKey

			handler(transport.Delivery{
				Envelope:    env,
				Acknowledge: func() error { msg.Ack(); return nil },
				Reject: func(requeue bool) error {
					if requeue {
						msg.Nack()
					} else {
						msg.Ack()
					}
					return nil
				},
			})
		})
	}()
	return nil
}

func (a *Adapter) StartRaw(ctx context.Context) error {
	_, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	return nil
}

func (a *Adapter) StopRaw(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	return nil
}

func (a *Adapter) DisposeRaw() error {
	_ = a.StopRaw(context.Background())
	return a.client.Close()
}
