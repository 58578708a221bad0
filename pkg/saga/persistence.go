package saga

import "context"

// Store is the saga persistence contract. Save enforces optimistic
// concurrency: the caller passes the version it last read, and Save
// fails with errors.CodeConcurrencyConflict if the stored version has
// since moved.
type Store interface {
	Save(ctx context.Context, data *Data, expectedVersion int64) error
	GetByID(ctx context.Context, id string) (*Data, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*Data, error)
	Delete(ctx context.Context, id string) error
	GetActive(ctx context.Context) ([]*Data, error)
	GetByState(ctx context.Context, state Status) ([]*Data, error)
}
