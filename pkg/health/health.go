// Package health builds library-only status documents from a registry
// of named checks. It has no HTTP surface — callers mount the Status
// document onto whatever transport they prefer.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brokercore/brokercore/pkg/concurrency"
)

// Status is a check or document's overall health classification.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Exception carries a check's panic/error detail, if any.
type Exception struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	StackTrace string `json:"stack_trace,omitempty"`
}

// Entry is one check's result within a Document.
type Entry struct {
	Status      Status        `json:"status"`
	Description string        `json:"description"`
	Duration    time.Duration `json:"duration"`
	Data        map[string]any `json:"data,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Exception   *Exception    `json:"exception,omitempty"`
}

// Document is the full status report: status, timestamp, total_duration,
// and the per-check entries map.
type Document struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	TotalDuration time.Duration    `json:"total_duration"`
	Entries       map[string]Entry `json:"entries"`
}

// SimpleCheck is the simple-variant projection of an Entry, omitting
// per-check detail.
type SimpleCheck struct {
	Name        string `json:"name"`
	Status      Status `json:"status"`
	Description string `json:"description"`
}

// Simple is the simple-variant status document: a status plus a flat
// checks array with name+status+description.
type Simple struct {
	Status Status        `json:"status"`
	Checks []SimpleCheck `json:"checks"`
}

// CheckFunc runs one health check, returning its Entry.
type CheckFunc func(ctx context.Context) Entry

// Check pairs a name and optional tags with the function that evaluates it.
type Check struct {
	Name string
	Tags []string
	Run  CheckFunc
}

// Registry holds named checks and builds Documents by running all of
// them concurrently.
type Registry struct {
	cfg Config

	mu     sync.Mutex
	checks []Check
}

// New validates cfg and returns an empty Registry.
func New(cfg Config) (*Registry, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Registry{cfg: cfg}, nil
}

// Register adds check to the registry.
func (r *Registry) Register(check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, check)
}

// Check runs every registered check concurrently, each bounded by the
// registry's configured connectivity timeout, and assembles the
// resulting Document. A check that panics is recorded as unhealthy
// with its recovered value in Exception rather than crashing the
// overall check.
func (r *Registry) Check(ctx context.Context) *Document {
	start := time.Now()

	r.mu.Lock()
	checks := append([]Check(nil), r.checks...)
	r.mu.Unlock()

	entries := make(map[string]Entry, len(checks))
	var mu sync.Mutex

	concurrency.FanOut(ctx, len(checks), func(i int) {
		c := checks[i]
		entry := runOne(ctx, c, r.cfg.ConnectivityTimeout)
		mu.Lock()
		entries[c.Name] = entry
		mu.Unlock()
	})

	return &Document{
		Status:        aggregate(entries),
		Timestamp:     start,
		TotalDuration: time.Since(start),
		Entries:       entries,
	}
}

// Simple runs Check and projects the result onto the simple variant.
func (r *Registry) Simple(ctx context.Context) *Simple {
	doc := r.Check(ctx)
	simple := &Simple{Status: doc.Status, Checks: make([]SimpleCheck, 0, len(doc.Entries))}
	for name, entry := range doc.Entries {
		simple.Checks = append(simple.Checks, SimpleCheck{Name: name, Status: entry.Status, Description: entry.Description})
	}
	return simple
}

func runOne(parent context.Context, c Check, timeout time.Duration) (entry Entry) {
	ctx := parent
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			entry = Entry{
				Status:      StatusUnhealthy,
				Description: fmt.Sprintf("check %q panicked", c.Name),
				Duration:    time.Since(start),
				Tags:        c.Tags,
				Exception:   &Exception{Message: fmt.Sprint(r), Type: "panic"},
			}
		}
	}()

	entry = c.Run(ctx)
	entry.Duration = time.Since(start)
	if entry.Tags == nil {
		entry.Tags = c.Tags
	}
	return entry
}

func aggregate(entries map[string]Entry) Status {
	status := StatusHealthy
	for _, e := range entries {
		switch e.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
