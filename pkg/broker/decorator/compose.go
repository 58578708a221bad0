package decorator

import (
	"github.com/brokercore/brokercore/pkg/broker"
	"github.com/brokercore/brokercore/pkg/bulkhead"
	"github.com/brokercore/brokercore/pkg/dedup"
	"github.com/brokercore/brokercore/pkg/inbox"
	"github.com/brokercore/brokercore/pkg/ratelimit"
	"github.com/brokercore/brokercore/pkg/resilience"
)

// Config enables and configures each decorator. A zero-valued field
// disables its decorator (it is simply not inserted into the chain).
type Config struct {
	Dedup struct {
		Enabled  bool
		Cache    *dedup.Cache
		Strategy dedup.Strategy
	}
	Bulkhead struct {
		Enabled   bool
		Bulkhead  *bulkhead.Bulkhead
	}
	CircuitBreaker struct {
		Enabled        bool
		CircuitBreaker *resilience.CircuitBreaker
	}
	RateLimit struct {
		Enabled bool
		Limiter *ratelimit.Limiter
	}
	Retry struct {
		Enabled bool
		Config  resilience.RetryConfig
	}
	Inbox struct {
		Enabled  bool
		Store    inbox.Store
		Consumer string
	}
}

// Compose wraps kernel from innermost to outermost following the
// canonical decorator order:
//
//	publish: kernel -> dedup -> bulkhead -> circuit-breaker -> rate-limit -> retry
//	consume: transport -> kernel -> bulkhead -> inbox -> handler
//
// Both orders are realized by a single wrap sequence since each
// decorator only touches the side(s) it cares about and passes the
// other straight through.
func Compose(kernel broker.Broker, cfg Config) broker.Broker {
	var b broker.Broker = kernel

	if cfg.Dedup.Enabled {
		b = NewDedup(b, cfg.Dedup.Cache, cfg.Dedup.Strategy)
	}
	if cfg.Bulkhead.Enabled {
		b = NewBulkhead(b, cfg.Bulkhead.Bulkhead)
	}
	if cfg.Inbox.Enabled {
		b = NewInbox(b, cfg.Inbox.Store, cfg.Inbox.Consumer)
	}
	if cfg.CircuitBreaker.Enabled {
		b = NewCircuitBreaker(b, cfg.CircuitBreaker.CircuitBreaker)
	}
	if cfg.RateLimit.Enabled {
		b = NewRateLimit(b, cfg.RateLimit.Limiter)
	}
	if cfg.Retry.Enabled {
		b = NewRetry(b, cfg.Retry.Config)
	}

	return b
}
