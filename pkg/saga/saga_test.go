package saga_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/brokercore/brokercore/pkg/resilience"
	"github.com/brokercore/brokercore/pkg/saga"
)

type SagaSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *SagaSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *SagaSuite) TestSagaSuccess() {
	var steps []string

	orderSaga := saga.New("order-saga").
		AddStep(saga.Step{
			Name: "reserve-inventory",
			Action: func(ctx context.Context, data any) (any, error) {
				steps = append(steps, "reserve")
				return data, nil
			},
			Compensate: func(ctx context.Context, data any) (any, error) {
				steps = append(steps, "release")
				return nil, nil
			},
		}).
		AddStep(saga.Step{
			Name: "charge-payment",
			Action: func(ctx context.Context, data any) (any, error) {
				steps = append(steps, "charge")
				return data, nil
			},
			Compensate: func(ctx context.Context, data any) (any, error) {
				steps = append(steps, "refund")
				return nil, nil
			},
		})

	result, err := orderSaga.Execute(s.ctx, "order-123")
	s.Require().NoError(err)
	s.True(result.Success)
	s.Equal(saga.StatusCompleted, result.Data.State)
	s.Equal([]string{"reserve", "charge"}, steps)
}

func (s *SagaSuite) TestSagaCompensation() {
	var steps []string

	orderSaga := saga.New("order-saga").
		AddStep(saga.Step{
			Name: "reserve-inventory",
			Action: func(ctx context.Context, data any) (any, error) {
				steps = append(steps, "reserve")
				return data, nil
			},
			Compensate: func(ctx context.Context, data any) (any, error) {
				steps = append(steps, "release")
				return nil, nil
			},
		}).
		AddStep(saga.Step{
			Name: "charge-payment",
			Action: func(ctx context.Context, data any) (any, error) {
				steps = append(steps, "charge")
				return nil, errors.New("payment failed")
			},
			Compensate: func(ctx context.Context, data any) (any, error) {
				steps = append(steps, "refund")
				return nil, nil
			},
		})

	result, err := orderSaga.Execute(s.ctx, "order-123")
	s.Require().NoError(err)
	s.False(result.Success)
	s.Equal(saga.StatusCompensated, result.Data.State)
	s.True(result.CompensationSucceeded)
	s.Equal("charge-payment", result.FailedStep)
	s.Equal([]string{"reserve", "charge", "release"}, steps)
}

func (s *SagaSuite) TestCompensationFailureNeverTransitionsToFailed() {
	orderSaga := saga.New("order-saga").
		AddStep(saga.Step{
			Name: "reserve-inventory",
			Action: func(ctx context.Context, data any) (any, error) { return data, nil },
			Compensate: func(ctx context.Context, data any) (any, error) {
				return nil, errors.New("compensation exploded")
			},
		}).
		AddStep(saga.Step{
			Name: "charge-payment",
			Action: func(ctx context.Context, data any) (any, error) {
				return nil, errors.New("payment failed")
			},
		}).
		WithCompensationRetry(resilience.RetryConfig{MaxAttempts: 1})

	result, err := orderSaga.Execute(s.ctx, "order-123")
	s.Require().NoError(err)
	s.Equal(saga.StatusCompensated, result.Data.State)
	s.False(result.CompensationSucceeded)
}

func (s *SagaSuite) TestEventsAreEmittedInOrder() {
	var events []saga.Event

	orderSaga := saga.New("order-saga").
		AddStep(saga.Step{
			Name:   "only-step",
			Action: func(ctx context.Context, data any) (any, error) { return data, nil },
		}).
		Subscribe(func(event saga.Event, data *saga.Data) { events = append(events, event) })

	_, err := orderSaga.Execute(s.ctx, "order-123")
	s.Require().NoError(err)
	s.Equal([]saga.Event{saga.EventSagaStarted, saga.EventSagaCompleted}, events)
}

func (s *SagaSuite) TestResumeUsesCurrentStepNotState() {
	var ran []string

	orderSaga := saga.New("order-saga").
		AddStep(saga.Step{
			Name:   "skipped",
			Action: func(ctx context.Context, data any) (any, error) { ran = append(ran, "skipped"); return data, nil },
		}).
		AddStep(saga.Step{
			Name:   "resumed-from-here",
			Action: func(ctx context.Context, data any) (any, error) { ran = append(ran, "resumed"); return data, nil },
		})

	data := &saga.Data{
		SagaType:    "order-saga",
		State:       saga.StatusFailed,
		CurrentStep: 1,
		Payload:     "order-123",
		Metadata:    map[string]any{},
	}

	result, err := orderSaga.Resume(s.ctx, data)
	s.Require().NoError(err)
	s.True(result.Success)
	s.Equal([]string{"resumed"}, ran)
}

func TestSagaSuite(t *testing.T) {
	suite.Run(t, new(SagaSuite))
}
