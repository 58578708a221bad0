package saga_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brokercore/brokercore/pkg/saga"
	"github.com/brokercore/brokercore/pkg/saga/adapters/memory"
)

func TestSupervisorTransitionsRunningToCompensatingOnTimeout(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	data := &saga.Data{
		ID:        "s1",
		State:     saga.StatusRunning,
		Metadata:  map[string]any{},
		UpdatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.Save(ctx, data, 0))

	sv := saga.NewSupervisor(store, saga.SupervisorConfig{DefaultTimeout: time.Minute})
	result := sv.RunOnce(ctx)

	require.Equal(t, 1, result.CheckedCount)
	require.Equal(t, 1, result.TimedOutCount)

	got, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, saga.StatusCompensating, got.State)
	require.Equal(t, true, got.Metadata["TimedOut"])
}

func TestSupervisorTransitionsCompensatingToFailedOnTimeout(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	data := &saga.Data{
		ID:        "s1",
		State:     saga.StatusCompensating,
		Metadata:  map[string]any{},
		UpdatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.Save(ctx, data, 0))

	sv := saga.NewSupervisor(store, saga.SupervisorConfig{DefaultTimeout: time.Minute})
	sv.RunOnce(ctx)

	got, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, saga.StatusFailed, got.State)
	require.Equal(t, true, got.Metadata["CompensationTimedOut"])
}

func TestSupervisorDoesNotRecountTimeoutAcrossCycles(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	data := &saga.Data{
		ID:        "s1",
		State:     saga.StatusRunning,
		Metadata:  map[string]any{},
		UpdatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.Save(ctx, data, 0))

	sv := saga.NewSupervisor(store, saga.SupervisorConfig{DefaultTimeout: time.Minute})

	first := sv.RunOnce(ctx)
	require.Equal(t, 1, first.TimedOutCount)

	got, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, saga.StatusCompensating, got.State)
	require.Equal(t, true, got.Metadata["TimedOut"])

	second := sv.RunOnce(ctx)
	require.Equal(t, 1, second.CheckedCount)
	require.Equal(t, 0, second.TimedOutCount)
}

func TestSupervisorLeavesFreshSagasAlone(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	data := &saga.Data{ID: "s1", State: saga.StatusRunning, Metadata: map[string]any{}, UpdatedAt: time.Now()}
	require.NoError(t, store.Save(ctx, data, 0))

	sv := saga.NewSupervisor(store, saga.SupervisorConfig{DefaultTimeout: time.Hour})
	result := sv.RunOnce(ctx)

	require.Equal(t, 0, result.TimedOutCount)
	got, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, saga.StatusRunning, got.State)
}
