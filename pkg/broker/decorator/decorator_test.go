package decorator_test

import (
	"context"
	"testing"
	"time"

	"github.com/brokercore/brokercore/pkg/broker"
	"github.com/brokercore/brokercore/pkg/broker/decorator"
	"github.com/brokercore/brokercore/pkg/broker/transport/adapters/memory"
	"github.com/brokercore/brokercore/pkg/dedup"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/serialization"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type orderCreated struct {
	ID string `json:"id"`
}

type DecoratorSuite struct {
	suite.Suite
	kernel   *broker.Kernel
	pipeline *serialization.Pipeline
}

func (s *DecoratorSuite) SetupTest() {
	adapter := memory.New()
	s.kernel = broker.NewKernel(adapter, broker.KernelConfig{})
	p, err := serialization.New(serialization.Config{Format: serialization.FormatJSON}, orderCreated{})
	s.Require().NoError(err)
	s.pipeline = p
	s.Require().NoError(s.kernel.Start(context.Background()))
}

func (s *DecoratorSuite) TestDedupDropsRepeatedPublish() {
	cache, err := dedup.New(dedup.Config{MaxSize: 10, Window: time.Minute})
	require.NoError(s.T(), err)
	s.T().Cleanup(func() { _ = cache.Dispose() })

	var cfg decorator.Config
	cfg.Dedup.Enabled = true
	cfg.Dedup.Cache = cache
	cfg.Dedup.Strategy = dedup.MessageIDStrategy()
	b := decorator.Compose(s.kernel, cfg)

	received := 0
	require.NoError(s.T(), broker.Subscribe(b, s.pipeline, "order.created", func(ctx context.Context, dc *broker.DeliveryContext, msg orderCreated) error {
		received++
		return nil
	}, broker.DefaultSubscribeOptions()))

	env := envelope.New("order.created", nil)
	env.MessageID = "m1"
	msg := orderCreated{ID: "o1"}
	encoded, err := s.pipeline.Encode("order.created", msg)
	require.NoError(s.T(), err)
	encoded.MessageID = "m1"

	require.NoError(s.T(), b.PublishEnvelope(context.Background(), encoded, broker.PublishOptions{}))
	require.NoError(s.T(), b.PublishEnvelope(context.Background(), encoded, broker.PublishOptions{}))

	time.Sleep(10 * time.Millisecond)
	s.Equal(1, received)
}

func TestDecoratorSuite(t *testing.T) {
	suite.Run(t, new(DecoratorSuite))
}
