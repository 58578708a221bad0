// Package gorm is a durable saga.Store backed by gorm over SQLite,
// grounded on pkg/inbox/adapters/sqlite's connection-lifecycle and
// migration pattern.
package gorm

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/brokercore/brokercore/pkg/errors"
	"github.com/brokercore/brokercore/pkg/saga"
)

type sagaRecord struct {
	ID                    string `gorm:"primaryKey;column:id"`
	SagaType              string `gorm:"column:saga_type;index"`
	CorrelationID         string `gorm:"column:correlation_id;index"`
	State                 string `gorm:"column:state;index"`
	CurrentStep           int    `gorm:"column:current_step"`
	Payload               []byte `gorm:"column:payload"`
	FailedStep            string `gorm:"column:failed_step"`
	CompensationSucceeded bool   `gorm:"column:compensation_succeeded"`
	Metadata              []byte `gorm:"column:metadata"`
	Version               int64  `gorm:"column:version"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (sagaRecord) TableName() string { return "sagas" }

func toRecord(d *saga.Data) (*sagaRecord, error) {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return nil, err
	}
	return &sagaRecord{
		ID:                    d.ID,
		SagaType:              d.SagaType,
		CorrelationID:         d.CorrelationID,
		State:                 string(d.State),
		CurrentStep:           d.CurrentStep,
		Payload:               payload,
		FailedStep:            d.FailedStep,
		CompensationSucceeded: d.CompensationSucceeded,
		Metadata:              meta,
		Version:               d.Version,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}, nil
}

func fromRecord(r *sagaRecord) (*saga.Data, error) {
	var payload any
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, err
		}
	}
	meta := make(map[string]any)
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &meta); err != nil {
			return nil, err
		}
	}
	return &saga.Data{
		ID:                    r.ID,
		SagaType:              r.SagaType,
		CorrelationID:         r.CorrelationID,
		State:                 saga.Status(r.State),
		CurrentStep:           r.CurrentStep,
		Payload:               payload,
		FailedStep:            r.FailedStep,
		CompensationSucceeded: r.CompensationSucceeded,
		Metadata:              meta,
		Version:               r.Version,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}, nil
}

// Store is a gorm/SQLite-backed saga.Store.
type Store struct {
	db *gorm.DB
}

// New opens (and migrates) a SQLite database at path as a saga.Store.
func New(path string) (*Store, error) {
	if path == "" {
		path = "sagas.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to connect to saga sqlite database")
	}
	if err := db.AutoMigrate(&sagaRecord{}); err != nil {
		return nil, apperrors.Wrap(err, "failed to migrate saga schema")
	}
	return &Store{db: db}, nil
}

// Save persists data under optimistic concurrency: if a row already
// exists for data.ID, its stored version must equal expectedVersion or
// the write fails with errors.CodeConcurrencyConflict.
func (s *Store) Save(ctx context.Context, data *saga.Data, expectedVersion int64) error {
	row, err := toRecord(data)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode saga record")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing sagaRecord
		err := tx.Where("id = ?", data.ID).First(&existing).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			row.Version = expectedVersion + 1
			if row.CreatedAt.IsZero() {
				row.CreatedAt = time.Now()
			}
			row.UpdatedAt = time.Now()
			return tx.Create(row).Error
		case err != nil:
			return apperrors.Wrap(err, "failed to read saga record")
		}

		if existing.Version != expectedVersion {
			return apperrors.New(apperrors.CodeConcurrencyConflict, "saga version mismatch", nil)
		}

		row.Version = expectedVersion + 1
		row.CreatedAt = existing.CreatedAt
		row.UpdatedAt = time.Now()
		return tx.Model(&sagaRecord{}).Where("id = ?", data.ID).Updates(row).Error
	})
}

func (s *Store) GetByID(ctx context.Context, id string) (*saga.Data, error) {
	var row sagaRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.NotFound("saga not found", nil)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load saga record")
	}
	return fromRecord(&row)
}

func (s *Store) GetByCorrelationID(ctx context.Context, correlationID string) (*saga.Data, error) {
	var row sagaRecord
	err := s.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.NotFound("saga not found", nil)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load saga record")
	}
	return fromRecord(&row)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&sagaRecord{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to delete saga record")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("saga not found", nil)
	}
	return nil
}

func (s *Store) GetActive(ctx context.Context) ([]*saga.Data, error) {
	return s.query(ctx, []saga.Status{saga.StatusRunning, saga.StatusCompensating})
}

func (s *Store) GetByState(ctx context.Context, state saga.Status) ([]*saga.Data, error) {
	return s.query(ctx, []saga.Status{state})
}

func (s *Store) query(ctx context.Context, states []saga.Status) ([]*saga.Data, error) {
	strStates := make([]string, len(states))
	for i, st := range states {
		strStates[i] = string(st)
	}

	var rows []sagaRecord
	if err := s.db.WithContext(ctx).Where("state IN ?", strStates).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to query saga records")
	}

	out := make([]*saga.Data, 0, len(rows))
	for i := range rows {
		d, err := fromRecord(&rows[i])
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to decode saga record")
		}
		out = append(out, d)
	}
	return out, nil
}
