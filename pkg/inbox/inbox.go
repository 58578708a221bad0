// Package inbox implements the inbox store contract: a
// (message_id, consumer_name) record set used to guarantee at-most-once
// handler invocation per consumer.
package inbox

import (
	"context"
	"time"
)

// Record is a single inbox entry: one message, delivered to and processed
// by one named consumer.
type Record struct {
	MessageID    string
	MessageType  string
	ConsumerName string
	ProcessedAt  time.Time
}

// Store is the inbox contract. A (message_id, consumer_name) pair is
// processed at most once for the lifetime of the record (subject to
// retention-based removal, which does not re-open processing).
type Store interface {
	// Exists reports whether messageID has already been recorded as
	// processed by consumerName.
	Exists(ctx context.Context, messageID, consumerName string) (bool, error)

	// Store records messageID as processed by consumerName, overwriting
	// any existing record for the same pair.
	Store(ctx context.Context, record Record) error

	// CleanupExpired removes records older than retention, returning the
	// number removed. Removal never re-opens processing for a removed
	// pair; it only reclaims storage.
	CleanupExpired(ctx context.Context, retention time.Duration) (int, error)

	// Close releases resources held by the store.
	Close() error
}
