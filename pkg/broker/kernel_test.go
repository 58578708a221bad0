package broker_test

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brokercore/brokercore/pkg/broker"
	"github.com/brokercore/brokercore/pkg/broker/transport/adapters/memory"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/serialization"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type orderCreated struct {
	ID string `json:"id"`
}

type KernelSuite struct {
	suite.Suite
	adapter  *memory.Adapter
	kernel   *broker.Kernel
	pipeline *serialization.Pipeline
}

func (s *KernelSuite) SetupTest() {
	s.adapter = memory.New()
	s.kernel = broker.NewKernel(s.adapter, broker.KernelConfig{})
	p, err := serialization.New(serialization.Config{Format: serialization.FormatJSON}, orderCreated{})
	s.Require().NoError(err)
	s.pipeline = p
	s.Require().NoError(s.kernel.Start(context.Background()))
}

func (s *KernelSuite) TestPublishSynthesizesMessageID() {
	env := envelope.New("order.created", []byte(`{"id":"o1"}`))
	s.Empty(env.MessageID)
	err := s.kernel.PublishEnvelope(context.Background(), env, broker.PublishOptions{})
	s.NoError(err)
	s.NotEmpty(env.MessageID)
}

func (s *KernelSuite) TestSubscribeReceivesPublishedMessage() {
	received := make(chan orderCreated, 1)
	err := broker.Subscribe[orderCreated](s.kernel, s.pipeline, "order.created", func(ctx context.Context, dc *broker.DeliveryContext, msg orderCreated) error {
		received <- msg
		return nil
	}, broker.DefaultSubscribeOptions())
	require.NoError(s.T(), err)

	err = broker.Publish(context.Background(), s.kernel, s.pipeline, "order.created", orderCreated{ID: "o1"}, broker.PublishOptions{})
	require.NoError(s.T(), err)

	select {
	case msg := <-received:
		s.Equal("o1", msg.ID)
	case <-time.After(time.Second):
		s.Fail("timed out waiting for delivery")
	}
}

func (s *KernelSuite) TestMultipleSubscribersAllReceive() {
	var count int32
	var wg sync.WaitGroup
	wg.Add(2)

	handler := func(ctx context.Context, dc *broker.DeliveryContext, msg orderCreated) error {
		atomic.AddInt32(&count, 1)
		wg.Done()
		return nil
	}
	require.NoError(s.T(), broker.Subscribe(s.kernel, s.pipeline, "order.created", handler, broker.DefaultSubscribeOptions()))
	require.NoError(s.T(), broker.Subscribe(s.kernel, s.pipeline, "order.created", handler, broker.DefaultSubscribeOptions()))

	require.NoError(s.T(), broker.Publish(context.Background(), s.kernel, s.pipeline, "order.created", orderCreated{ID: "o1"}, broker.PublishOptions{}))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
		s.EqualValues(2, atomic.LoadInt32(&count))
	case <-time.After(time.Second):
		s.Fail("timed out waiting for both subscribers")
	}
}

func (s *KernelSuite) TestOneHandlerFailureDoesNotBlockSiblings() {
	var wg sync.WaitGroup
	wg.Add(2)
	okCalled := make(chan struct{}, 1)

	require.NoError(s.T(), broker.Subscribe(s.kernel, s.pipeline, "order.created", func(ctx context.Context, dc *broker.DeliveryContext, msg orderCreated) error {
		defer wg.Done()
		return stderrors.New("handler failed")
	}, broker.DefaultSubscribeOptions()))
	require.NoError(s.T(), broker.Subscribe(s.kernel, s.pipeline, "order.created", func(ctx context.Context, dc *broker.DeliveryContext, msg orderCreated) error {
		defer wg.Done()
		okCalled <- struct{}{}
		return nil
	}, broker.DefaultSubscribeOptions()))

	require.NoError(s.T(), broker.Publish(context.Background(), s.kernel, s.pipeline, "order.created", orderCreated{ID: "o1"}, broker.PublishOptions{}))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
		s.Len(okCalled, 1)
	case <-time.After(time.Second):
		s.Fail("timed out")
	}
}

func (s *KernelSuite) TestDisposeRejectsFurtherPublish() {
	require.NoError(s.T(), s.kernel.Dispose())
	env := envelope.New("order.created", []byte(`{"id":"o1"}`))
	err := s.kernel.PublishEnvelope(context.Background(), env, broker.PublishOptions{})
	s.Error(err)
}

func (s *KernelSuite) TestStartStopIdempotent() {
	s.NoError(s.kernel.Start(context.Background()))
	s.NoError(s.kernel.Stop(context.Background()))
	s.NoError(s.kernel.Stop(context.Background()))
}

func TestKernelSuite(t *testing.T) {
	suite.Run(t, new(KernelSuite))
}
