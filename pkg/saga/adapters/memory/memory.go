// Package memory is the in-memory reference implementation of
// saga.Store — the authoritative semantics durable adapters must match.
package memory

import (
	"context"
	"sync"

	apperrors "github.com/brokercore/brokercore/pkg/errors"
	"github.com/brokercore/brokercore/pkg/saga"
)

// Store is a mutex-guarded map of saga.Data keyed by ID.
type Store struct {
	mu      sync.Mutex
	records map[string]*saga.Data
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]*saga.Data)}
}

func clone(d *saga.Data) *saga.Data {
	c := *d
	c.Metadata = make(map[string]any, len(d.Metadata))
	for k, v := range d.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func (s *Store) Save(ctx context.Context, data *saga.Data, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[data.ID]
	if ok && existing.Version != expectedVersion {
		return apperrors.New(apperrors.CodeConcurrencyConflict, "saga version mismatch", nil)
	}

	data.Version = expectedVersion + 1
	s.records[data.ID] = clone(data)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*saga.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.records[id]
	if !ok {
		return nil, apperrors.NotFound("saga not found", nil)
	}
	return clone(d), nil
}

func (s *Store) GetByCorrelationID(ctx context.Context, correlationID string) (*saga.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.records {
		if d.CorrelationID == correlationID {
			return clone(d), nil
		}
	}
	return nil, apperrors.NotFound("saga not found", nil)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return apperrors.NotFound("saga not found", nil)
	}
	delete(s.records, id)
	return nil
}

func (s *Store) GetActive(ctx context.Context) ([]*saga.Data, error) {
	return s.GetByStates(saga.StatusRunning, saga.StatusCompensating)
}

func (s *Store) GetByState(ctx context.Context, state saga.Status) ([]*saga.Data, error) {
	return s.GetByStates(state)
}

// GetByStates is a helper not on the saga.Store interface that fetches
// several states in one scan; GetActive and GetByState delegate to it.
func (s *Store) GetByStates(states ...saga.Status) ([]*saga.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[saga.Status]bool, len(states))
	for _, st := range states {
		want[st] = true
	}

	var out []*saga.Data
	for _, d := range s.records {
		if want[d.State] {
			out = append(out, clone(d))
		}
	}
	return out, nil
}
