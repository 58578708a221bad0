// Package saga implements the ordered-step, reverse-order-compensation
// saga pattern: a fluent Saga builder of named steps, each with an
// Action and a Compensate function, executed via Execute/Resume against
// a Data snapshot.
package saga

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	apperrors "github.com/brokercore/brokercore/pkg/errors"
	"github.com/brokercore/brokercore/pkg/logger"
	"github.com/brokercore/brokercore/pkg/resilience"
)

// Status is the lifecycle state of a saga execution.
type Status string

const (
	StatusPending     Status = "pending"
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusCompensating Status = "compensating"
	StatusCompensated Status = "compensated"
	StatusFailed      Status = "failed"
	StatusAborted     Status = "aborted"
)

// StepFunc runs a saga step's action or compensation against the
// current data snapshot. ctx carries cancellation.
type StepFunc func(ctx context.Context, data any) (any, error)

// Step is one unit of saga work: Action does the forward operation,
// Compensate undoes it. Compensate may be nil for steps with no
// side effect to undo.
type Step struct {
	Name       string
	Action     StepFunc
	Compensate StepFunc
}

// Data is the saga's mutable execution record. Persisters round-trip
// this exact shape (see persistence.go).
type Data struct {
	ID            string
	SagaType      string
	CorrelationID string
	State         Status
	CurrentStep   int
	Payload       any
	FailedStep    string
	CompensationSucceeded bool
	Metadata      map[string]any
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Result is the outcome object the engine returns from Execute.
type Result struct {
	Success               bool
	Data                  *Data
	FailedStep            string
	CompensationSucceeded bool
}

// Event names emitted to subscribers during execution.
type Event string

const (
	EventSagaStarted     Event = "SagaStarted"
	EventSagaCompleted   Event = "SagaCompleted"
	EventSagaFailed      Event = "SagaFailed"
	EventSagaCompensated Event = "SagaCompensated"
)

// Subscriber receives lifecycle events as they happen.
type Subscriber func(event Event, data *Data)

// MetricsCollector records per-saga-type and per-step totals. Implementations
// must be safe for concurrent use.
type MetricsCollector interface {
	RecordStep(sagaType, stepName string, success bool, duration time.Duration)
	RecordSaga(sagaType string, status Status, duration time.Duration)
}

// Saga is an ordered list of steps built with a fluent AddStep API.
type Saga struct {
	name        string
	steps       []Step
	subscribers []Subscriber
	metrics     MetricsCollector
	compensationRetry resilience.RetryConfig
}

// New starts building a saga named name.
func New(name string) *Saga {
	return &Saga{
		name: name,
		compensationRetry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
		},
	}
}

// AddStep appends step to the saga's ordered step list.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Name returns the saga's type name.
func (s *Saga) Name() string {
	return s.name
}

// Steps returns the saga's ordered step list.
func (s *Saga) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

// StepByName returns the step registered under name, if any.
func (s *Saga) StepByName(name string) (Step, bool) {
	for _, step := range s.steps {
		if step.Name == name {
			return step, true
		}
	}
	return Step{}, false
}

// Subscribe registers fn to receive lifecycle events.
func (s *Saga) Subscribe(fn Subscriber) *Saga {
	s.subscribers = append(s.subscribers, fn)
	return s
}

// WithMetrics attaches a collector for step and saga totals.
func (s *Saga) WithMetrics(m MetricsCollector) *Saga {
	s.metrics = m
	return s
}

// WithCompensationRetry overrides the default compensation retry policy.
func (s *Saga) WithCompensationRetry(cfg resilience.RetryConfig) *Saga {
	s.compensationRetry = cfg
	return s
}

func (s *Saga) emit(event Event, data *Data) {
	for _, sub := range s.subscribers {
		sub(event, data)
	}
}

// Execute runs the saga from scratch against payload, equivalent to
// Resume with a freshly initialized Data record.
func (s *Saga) Execute(ctx context.Context, payload any) (*Result, error) {
	data := &Data{
		SagaType:  s.name,
		State:     StatusRunning,
		Metadata:  make(map[string]any),
		Payload:   payload,
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	return s.Resume(ctx, data)
}

// Resume continues (or starts) execution from data.CurrentStep forward.
// data.State is never a gate: only CurrentStep decides where execution
// resumes, so a saga fetched in a terminal state still replays forward
// from its cursor.
func (s *Saga) Resume(ctx context.Context, data *Data) (*Result, error) {
	start := time.Now()
	data.State = StatusRunning
	s.emit(EventSagaStarted, data)

	for i := data.CurrentStep; i < len(s.steps); i++ {
		step := s.steps[i]
		stepStart := time.Now()

		out, err := step.Action(ctx, data.Payload)

		if ctx.Err() != nil {
			s.recordStep(step.Name, false, time.Since(stepStart))
			return nil, apperrors.New(apperrors.CodeCancelled, "saga step cancelled", ctx.Err())
		}

		if err != nil {
			s.recordStep(step.Name, false, time.Since(stepStart))
			data.FailedStep = step.Name
			s.emit(EventSagaFailed, data)
			result := s.compensate(ctx, data, i)
			s.recordSaga(data.State, time.Since(start))
			return result, nil
		}

		s.recordStep(step.Name, true, time.Since(stepStart))
		data.Payload = out
		data.CurrentStep = i + 1
		data.UpdatedAt = now()
	}

	data.State = StatusCompleted
	data.UpdatedAt = now()
	s.emit(EventSagaCompleted, data)
	s.recordSaga(data.State, time.Since(start))

	return &Result{Success: true, Data: data}, nil
}

// compensate runs compensations for steps [failedIndex-1 .. 0] in
// reverse order. Regardless of per-step outcome the saga transitions
// to compensated, never failed — only the timeout supervisor can
// transition a compensating saga to failed.
func (s *Saga) compensate(ctx context.Context, data *Data, failedIndex int) *Result {
	data.State = StatusCompensating
	data.UpdatedAt = now()

	succeeded := true
	for j := failedIndex - 1; j >= 0; j-- {
		step := s.steps[j]
		if step.Compensate == nil {
			continue
		}

		cfg := s.compensationRetry
		cfg.RetryIf = isTransient

		err := resilience.Retry(ctx, cfg, func(ctx context.Context) error {
			_, err := step.Compensate(ctx, data.Payload)
			return err
		})
		if err != nil {
			logger.L().ErrorContext(ctx, "saga compensation failed", "saga", s.name, "step", step.Name, "error", err)
			succeeded = false
		}
	}

	data.State = StatusCompensated
	data.CompensationSucceeded = succeeded
	data.UpdatedAt = now()
	s.emit(EventSagaCompensated, data)

	return &Result{
		Success:               false,
		Data:                  data,
		FailedStep:            data.FailedStep,
		CompensationSucceeded: succeeded,
	}
}

func (s *Saga) recordStep(name string, success bool, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordStep(s.name, name, success, d)
	}
}

func (s *Saga) recordSaga(status Status, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordSaga(s.name, status, d)
	}
}

// isTransient classifies compensation failures: timeout, network,
// socket, and HTTP errors are retried; anything else is not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var ae *apperrors.AppError
	if errors.As(err, &ae) && ae.Code == apperrors.CodeTransient {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "http")
}

func now() time.Time { return time.Now() }
