// Package memory is the in-memory inbox.Store, the authoritative reference
// implementation against which durable adapters are tested.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/brokercore/brokercore/pkg/inbox"
)

type key struct {
	messageID    string
	consumerName string
}

// Store is a mutex-guarded map implementation of inbox.Store.
type Store struct {
	mu      sync.Mutex
	records map[key]inbox.Record
}

// New builds an empty in-memory Store.
func New() *Store {
	return &Store{records: make(map[key]inbox.Record)}
}

func (s *Store) Exists(ctx context.Context, messageID, consumerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key{messageID, consumerName}]
	return ok, nil
}

func (s *Store) Store(ctx context.Context, record inbox.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now()
	}
	s.records[key{record.MessageID, record.ConsumerName}] = record
	return nil
}

func (s *Store) CleanupExpired(ctx context.Context, retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	removed := 0
	for k, r := range s.records {
		if r.ProcessedAt.Before(cutoff) {
			delete(s.records, k)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[key]inbox.Record)
	return nil
}
