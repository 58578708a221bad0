package saga

import (
	"context"
	"time"

	"github.com/brokercore/brokercore/pkg/logger"
)

// SupervisorConfig configures the timeout supervisor.
type SupervisorConfig struct {
	CheckInterval  time.Duration `env:"SAGA_SUPERVISOR_CHECK_INTERVAL" env-default:"30s"`
	DefaultTimeout time.Duration `env:"SAGA_SUPERVISOR_DEFAULT_TIMEOUT" env-default:"5m"`
}

// CycleResult is the per-cycle report the supervisor produces.
type CycleResult struct {
	CheckedCount int
	TimedOutCount int
}

// Supervisor periodically scans running/compensating sagas and forces
// timed-out ones forward: running -> compensating, compensating -> failed.
type Supervisor struct {
	cfg   SupervisorConfig
	store Store
}

// NewSupervisor builds a Supervisor over store.
func NewSupervisor(store Store, cfg SupervisorConfig) *Supervisor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
	return &Supervisor{cfg: cfg, store: store}
}

// Run loops until ctx is cancelled. Cancellation is graceful: an
// in-flight check completes before the loop exits.
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(sv.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sv.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single supervisor cycle and returns its result.
// Exposed directly so callers can drive the supervisor from their own
// scheduler, or invoke it on demand.
func (sv *Supervisor) RunOnce(ctx context.Context) CycleResult {
	result := CycleResult{}

	active, err := sv.store.GetActive(ctx)
	if err != nil {
		logger.L().ErrorContext(ctx, "saga supervisor failed to list active sagas", "error", err)
		return result
	}

	for _, data := range active {
		result.CheckedCount++
		timedOut, err := sv.checkOne(ctx, data)
		if err != nil {
			logger.L().ErrorContext(ctx, "saga supervisor check failed", "saga_id", data.ID, "error", err)
			continue
		}
		if timedOut {
			result.TimedOutCount++
		}
	}

	return result
}

// checkOne inspects data and, if it has exceeded its effective timeout,
// performs the running->compensating or compensating->failed transition
// and persists it. Its bool result reports whether THIS call performed a
// transition, so RunOnce counts only newly-detected timeouts per cycle
// rather than re-counting a transition a prior cycle already recorded.
func (sv *Supervisor) checkOne(ctx context.Context, data *Data) (bool, error) {
	effectiveTimeout := sv.cfg.DefaultTimeout
	if v, ok := data.Metadata["Timeout"]; ok {
		if seconds, ok := v.(float64); ok {
			effectiveTimeout = time.Duration(seconds) * time.Second
		}
	}

	if time.Since(data.UpdatedAt) < effectiveTimeout {
		return false, nil
	}

	version := data.Version
	switch data.State {
	case StatusRunning:
		data.State = StatusCompensating
		data.Metadata["TimedOut"] = true
	case StatusCompensating:
		data.State = StatusFailed
		data.Metadata["CompensationTimedOut"] = true
	default:
		return false, nil
	}
	data.UpdatedAt = time.Now()

	if err := sv.store.Save(ctx, data, version); err != nil {
		return false, err
	}
	return true, nil
}
