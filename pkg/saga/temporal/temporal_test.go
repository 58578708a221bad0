package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brokercore/brokercore/pkg/saga"
)

func TestNewRunnerDefaultsActivityTimeout(t *testing.T) {
	r := NewRunner(saga.New("order"), "orders-tq", 0)
	require.Equal(t, 5*time.Minute, r.activityTimeout)
}

func TestNewRunnerKeepsExplicitActivityTimeout(t *testing.T) {
	r := NewRunner(saga.New("order"), "orders-tq", 30*time.Second)
	require.Equal(t, 30*time.Second, r.activityTimeout)
}

func TestActivityNamesAreScopedBySagaAndStep(t *testing.T) {
	r := NewRunner(saga.New("order"), "orders-tq", time.Minute)

	require.Equal(t, "saga.order", r.workflowName())
	require.Equal(t, "saga.order.action.reserve", r.actionActivityName("reserve"))
	require.Equal(t, "saga.order.compensate.reserve", r.compensateActivityName("reserve"))
}
