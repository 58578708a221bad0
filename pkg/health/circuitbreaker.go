package health

import (
	"context"
	"fmt"

	"github.com/brokercore/brokercore/pkg/resilience"
)

// CircuitBreakerCheck builds a Check reporting breaker's current state:
// healthy when closed, degraded when half-open, unhealthy when open.
// This is the built-in check enabled via the health config's
// include_circuit_breaker_state flag.
func CircuitBreakerCheck(breaker *resilience.CircuitBreaker) Check {
	return Check{
		Name: fmt.Sprintf("circuit_breaker.%s", breaker.Name()),
		Tags: []string{"resilience", "circuit_breaker"},
		Run: func(ctx context.Context) Entry {
			metrics := breaker.Metrics()

			status := StatusHealthy
			description := "circuit closed"
			switch metrics.State {
			case resilience.StateOpen:
				status = StatusUnhealthy
				description = "circuit open"
			case resilience.StateHalfOpen:
				status = StatusDegraded
				description = "circuit half-open, probing"
			}

			return Entry{
				Status:      status,
				Description: description,
				Data: map[string]any{
					"state":     string(metrics.State),
					"total":     metrics.Total,
					"failures":  metrics.Failures,
					"fail_rate": metrics.FailRate,
				},
			}
		},
	}
}
