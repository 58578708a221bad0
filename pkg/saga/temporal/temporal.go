// Package temporal runs a pkg/saga.Saga as a Temporal workflow, giving the
// in-process engine a durable-execution backend: Temporal's event history
// takes over from a saga.Store snapshot as the source of truth for
// resuming a saga across worker restarts. Each step's Action and Compensate
// run as Temporal activities, so Temporal's own retry policies and history
// replay handle the crash-recovery cases pkg/saga's supervisor otherwise
// polls for.
package temporal

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/brokercore/brokercore/pkg/saga"
)

// Runner binds a saga.Saga definition to a Temporal task queue, exposing a
// workflow function plus the activity registrations it needs.
type Runner struct {
	saga            *saga.Saga
	taskQueue       string
	activityTimeout time.Duration
}

// NewRunner builds a Runner for s on taskQueue, using activityTimeout as
// each step's StartToCloseTimeout.
func NewRunner(s *saga.Saga, taskQueue string, activityTimeout time.Duration) *Runner {
	if activityTimeout <= 0 {
		activityTimeout = 5 * time.Minute
	}
	return &Runner{saga: s, taskQueue: taskQueue, activityTimeout: activityTimeout}
}

// Register registers the workflow and every step's action/compensation
// activity on w, under names scoped to the saga's type name so multiple
// sagas can share a worker.
func (r *Runner) Register(w worker.Worker) {
	w.RegisterWorkflowWithOptions(r.Workflow, workflow.RegisterOptions{Name: r.workflowName()})

	for _, step := range r.saga.Steps() {
		step := step
		w.RegisterActivityWithOptions(
			func(ctx context.Context, payload any) (any, error) { return step.Action(ctx, payload) },
			activity.RegisterOptions{Name: r.actionActivityName(step.Name)},
		)
		if step.Compensate != nil {
			w.RegisterActivityWithOptions(
				func(ctx context.Context, payload any) (any, error) { return step.Compensate(ctx, payload) },
				activity.RegisterOptions{Name: r.compensateActivityName(step.Name)},
			)
		}
	}
}

// Workflow is the Temporal workflow function for r.saga: it runs each step
// in order as an activity, and on a step's failure runs the already-
// completed steps' compensations in reverse order, matching
// saga.Saga.Resume's compensation order.
func (r *Runner) Workflow(ctx workflow.Context, payload any) (*saga.Result, error) {
	ao := workflow.ActivityOptions{StartToCloseTimeout: r.activityTimeout}
	ctx = workflow.WithActivityOptions(ctx, ao)

	data := &saga.Data{SagaType: r.saga.Name(), State: saga.StatusRunning, Payload: payload}

	var completed []string
	for _, step := range r.saga.Steps() {
		var out any
		err := workflow.ExecuteActivity(ctx, r.actionActivityName(step.Name), data.Payload).Get(ctx, &out)
		if err != nil {
			data.FailedStep = step.Name
			succeeded := r.compensate(ctx, completed, data)
			data.State = saga.StatusCompensated
			data.CompensationSucceeded = succeeded
			return &saga.Result{Success: false, Data: data, FailedStep: step.Name, CompensationSucceeded: succeeded}, nil
		}
		data.Payload = out
		completed = append(completed, step.Name)
		data.CurrentStep++
	}

	data.State = saga.StatusCompleted
	return &saga.Result{Success: true, Data: data}, nil
}

// compensate runs compensations for completed, in reverse order, on a
// disconnected context so a cancelled workflow context does not abort
// cleanup. It returns whether every compensation succeeded.
func (r *Runner) compensate(ctx workflow.Context, completed []string, data *saga.Data) bool {
	disconnected, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()

	succeeded := true
	for i := len(completed) - 1; i >= 0; i-- {
		step, ok := r.saga.StepByName(completed[i])
		if !ok || step.Compensate == nil {
			continue
		}
		if err := workflow.ExecuteActivity(disconnected, r.compensateActivityName(step.Name), data.Payload).Get(disconnected, nil); err != nil {
			succeeded = false
		}
	}
	return succeeded
}

func (r *Runner) workflowName() string { return "saga." + r.saga.Name() }

func (r *Runner) actionActivityName(step string) string {
	return "saga." + r.saga.Name() + ".action." + step
}

func (r *Runner) compensateActivityName(step string) string {
	return "saga." + r.saga.Name() + ".compensate." + step
}

// NewWorker builds and registers a Temporal worker for r against c.
func NewWorker(c client.Client, r *Runner) worker.Worker {
	w := worker.New(c, r.taskQueue, worker.Options{})
	r.Register(w)
	return w
}

// Execute starts r's workflow on c under workflowID and blocks for its
// result, giving callers the same *saga.Result shape pkg/saga.Saga.Execute
// returns from the in-process engine.
func Execute(ctx context.Context, c client.Client, r *Runner, workflowID string, payload any) (*saga.Result, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: r.taskQueue,
	}, r.Workflow, payload)
	if err != nil {
		return nil, err
	}

	var result saga.Result
	if err := run.Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
