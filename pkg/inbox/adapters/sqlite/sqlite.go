// Package sqlite is a durable inbox.Store backed by gorm over SQLite.
package sqlite

import (
	"context"
	"time"

	"github.com/brokercore/brokercore/pkg/errors"
	"github.com/brokercore/brokercore/pkg/inbox"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type inboxRecord struct {
	MessageID    string `gorm:"primaryKey;column:message_id"`
	ConsumerName string `gorm:"primaryKey;column:consumer_name"`
	MessageType  string `gorm:"column:message_type"`
	ProcessedAt  time.Time
}

func (inboxRecord) TableName() string { return "inbox_records" }

// Store is a gorm/SQLite-backed inbox.Store.
type Store struct {
	db *gorm.DB
}

// New opens (and migrates) a SQLite database at path as an inbox.Store.
func New(path string) (*Store, error) {
	if path == "" {
		path = "inbox.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to inbox sqlite database")
	}
	if err := db.AutoMigrate(&inboxRecord{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate inbox schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Exists(ctx context.Context, messageID, consumerName string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&inboxRecord{}).
		Where("message_id = ? AND consumer_name = ?", messageID, consumerName).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to query inbox record")
	}
	return count > 0, nil
}

func (s *Store) Store(ctx context.Context, record inbox.Record) error {
	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now()
	}
	row := inboxRecord{
		MessageID:    record.MessageID,
		ConsumerName: record.ConsumerName,
		MessageType:  record.MessageType,
		ProcessedAt:  record.ProcessedAt,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "consumer_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"message_type", "processed_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "failed to store inbox record")
	}
	return nil
}

func (s *Store) CleanupExpired(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&inboxRecord{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to cleanup expired inbox records")
	}
	return int(result.RowsAffected), nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}
