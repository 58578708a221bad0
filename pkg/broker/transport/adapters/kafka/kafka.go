// Package kafka is the partitioned-log transport.Adapter, backed by
// github.com/IBM/sarama: a sarama.SyncProducer for publish and a
// sarama.ConsumerGroup for subscribe.
package kafka

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"github.com/brokercore/brokercore/pkg/broker/transport"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/errors"
)

// Config configures the Kafka adapter.
type Config struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	GroupID string   `env:"KAFKA_GROUP_ID" env-default:"brokercore"`
}

// Adapter implements transport.Adapter over sarama.
type Adapter struct {
	cfg      Config
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup

	mu       sync.Mutex
	handlers map[string]func(transport.Delivery)
	cancel   context.CancelFunc
	disposed bool
}

// New dials Kafka and builds both the sync producer and the consumer
// group used for subscriptions.
func New(cfg Config) (*Adapter, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, translateErr(err)
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		_ = producer.Close()
		return nil, translateErr(err)
	}

	return &Adapter{
		cfg:      cfg,
		producer: producer,
		group:    group,
		handlers: make(map[string]func(transport.Delivery)),
	}, nil
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.Transient("kafka operation failed", err)
}

func (a *Adapter) PublishRaw(ctx context.Context, env *envelope.Envelope, routingKey string, opts transport.PublishOptions) error {
	headers := make([]sarama.RecordHeader, 0, len(env.Headers)+1)
	for k, v := range env.Headers {
		if s, ok := v.(string); ok {
			headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(s)})
		}
	}
	headers = append(headers, sarama.RecordHeader{Key: []byte("message-id"), Value: []byte(env.MessageID)})

	msg := &sarama.ProducerMessage{
		Topic:     routingKey,
		Value:     sarama.ByteEncoder(env.Payload),
		Timestamp: env.Timestamp,
		Headers:   headers,
	}
	_, _, err := a.producer.SendMessage(msg)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

// consumerGroupHandler adapts sarama's ConsumerGroupHandler to the
// per-topic dispatch map registered via SubscribeRaw.
type consumerGroupHandler struct {
	adapter *Adapter
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.adapter.mu.Lock()
		handler, ok := h.adapter.handlers[msg.Topic]
		h.adapter.mu.Unlock()
		if !ok {
			continue
		}

		env := envelope.New("", msg.Value)
		for _, hdr := range msg.Headers {
			_ = env.Headers.Set(string(hdr.Key), string(hdr.Value))
		}
		env.RoutingKey = msg.Topic
		env.Timestamp = msg.Timestamp

		handler(transport.Delivery{
			Envelope: env,
			Acknowledge: func() error {
				sess.MarkMessage(msg, "")
				return nil
			},
			Reject: func(requeue bool) error {
				if !requeue {
					sess.MarkMessage(msg, "")
				}
				return nil
			},
		})
	}
	return nil
}

func (a *Adapter) SubscribeRaw(ctx context.Context, typeKey string, routingKey string, opts transport.SubscribeOptions, handler func(transport.Delivery)) error {
	a.mu.Lock()
	a.handlers[routingKey] = handler
	a.mu.Unlock()
	return nil
}

func (a *Adapter) StartRaw(ctx context.Context) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return nil
	}
	topics := make([]string, 0, len(a.handlers))
	for t := range a.handlers {
		topics = append(topics, t)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	if len(topics) == 0 {
		return nil
	}

	go func() {
		handler := &consumerGroupHandler{adapter: a}
		for {
			if err := a.group.Consume(runCtx, topics, handler); err != nil {
				if runCtx.Err() != nil {
					return
				}
			}
			if runCtx.Err() != nil {
				return
			}
		}
	}()
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
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil
	}
	a.disposed = true
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	_ = a.group.Close()
	return translateErr(a.producer.Close())
}
