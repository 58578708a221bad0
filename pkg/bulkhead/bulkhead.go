// Package bulkhead bounds concurrent execution with a fixed-size active set
// plus a bounded FIFO wait queue, isolating one caller's load from another's.
package bulkhead

import (
	"context"
	"sync"
	"time"

	"github.com/brokercore/brokercore/pkg/concurrency"
	"github.com/brokercore/brokercore/pkg/errors"
)

// Config configures a Bulkhead.
type Config struct {
	Enabled bool `env:"BULKHEAD_ENABLED" env-default:"true"`

	// MaxConcurrent bounds how many operations may run at once.
	MaxConcurrent int `env:"BULKHEAD_MAX_CONCURRENT" env-default:"10"`

	// MaxQueued bounds how many callers may wait for a slot.
	MaxQueued int `env:"BULKHEAD_MAX_QUEUED" env-default:"50"`

	// AcquisitionTimeout bounds how long a queued caller waits for a slot.
	AcquisitionTimeout time.Duration `env:"BULKHEAD_ACQUISITION_TIMEOUT" env-default:"5s"`
}

// RejectedError reports a bulkhead rejection, carrying the active/queued
// counts observed at rejection time.
type RejectedError struct {
	*errors.AppError
	Active int
	Queued int
}

func newRejected(active, queued int) *RejectedError {
	return &RejectedError{
		AppError: errors.BulkheadRejectedErr("bulkhead rejected: no capacity", nil),
		Active:   active,
		Queued:   queued,
	}
}

// Bulkhead isolates concurrent execution behind a bounded active set and a
// bounded FIFO wait queue. The active set is gated by a
// concurrency.Semaphore; Bulkhead itself only tracks the queue-length bound
// and the metrics the semaphore has no notion of.
type Bulkhead struct {
	cfg Config
	sem *concurrency.Semaphore

	mu     sync.Mutex
	active int
	queued int

	rejectedTotal     int64
	executedTotal     int64
	maxObservedActive int
	maxObservedQueued int
	waitSamples       int64
	totalWait         time.Duration
}

// New builds a Bulkhead from cfg. A non-positive MaxConcurrent becomes 10
// and a negative MaxQueued becomes 0; other fields are used as given.
func New(cfg Config) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.MaxQueued < 0 {
		cfg.MaxQueued = 0
	}
	return &Bulkhead{
		cfg: cfg,
		sem: concurrency.NewSemaphore(int64(cfg.MaxConcurrent)),
	}
}

// Metrics is a point-in-time snapshot of bulkhead counters.
type Metrics struct {
	Active            int
	Queued            int
	RejectedTotal     int64
	ExecutedTotal     int64
	MaxObservedActive int
	MaxObservedQueued int
	AverageWait       time.Duration
}

func (b *Bulkhead) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	var avg time.Duration
	if b.waitSamples > 0 {
		avg = b.totalWait / time.Duration(b.waitSamples)
	}
	return Metrics{
		Active:            b.active,
		Queued:            b.queued,
		RejectedTotal:     b.rejectedTotal,
		ExecutedTotal:     b.executedTotal,
		MaxObservedActive: b.maxObservedActive,
		MaxObservedQueued: b.maxObservedQueued,
		AverageWait:       avg,
	}
}

// Execute runs f under bulkhead protection, queueing the caller (FIFO) if
// the active set is full and the queue has room, or rejecting immediately
// with RejectedError otherwise. Cancellation while queued removes the
// caller from the queue without running f.
func Execute[T any](ctx context.Context, b *Bulkhead, f func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := b.acquire(ctx); err != nil {
		return zero, err
	}
	defer b.release()

	b.mu.Lock()
	b.executedTotal++
	b.mu.Unlock()

	return f(ctx)
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		b.mu.Lock()
		b.active++
		if b.active > b.maxObservedActive {
			b.maxObservedActive = b.active
		}
		b.mu.Unlock()
		return nil
	}

	b.mu.Lock()
	if b.queued >= b.cfg.MaxQueued {
		b.rejectedTotal++
		active, queued := b.active, b.queued
		b.mu.Unlock()
		return newRejected(active, queued)
	}
	b.queued++
	if b.queued > b.maxObservedQueued {
		b.maxObservedQueued = b.queued
	}
	start := time.Now()
	b.mu.Unlock()

	waitCtx := ctx
	if b.cfg.AcquisitionTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, b.cfg.AcquisitionTimeout)
		defer cancel()
	}

	err := b.sem.Acquire(waitCtx, 1)

	b.mu.Lock()
	b.queued--
	b.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return errors.CancelledErr("bulkhead wait cancelled", ctx.Err())
		}
		active, queued := b.snapshotCounts()
		return newRejected(active, queued)
	}

	b.mu.Lock()
	b.active++
	if b.active > b.maxObservedActive {
		b.maxObservedActive = b.active
	}
	b.waitSamples++
	b.totalWait += time.Since(start)
	b.mu.Unlock()
	return nil
}

func (b *Bulkhead) snapshotCounts() (active, queued int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, b.queued
}

func (b *Bulkhead) release() {
	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	b.sem.Release(1)
}
