package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrDisabled is returned by the disabled store's write path.
var ErrDisabled = errors.New("history store disabled")

// Store persists history rows to MySQL.
type Store struct {
	db *gorm.DB
}

// Open connects to MySQL and migrates the history table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Append writes one history row.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to append history row: %w", err)
	}
	return nil
}

// LatestPerDeviceSince returns the most recent row per device with a
// timestamp at or after cutoff. Rows are scanned in timestamp order and
// reduced in memory; device cardinality is low.
func (s *Store) LatestPerDeviceSince(ctx context.Context, cutoff time.Time) ([]Record, error) {
	var rows []Record
	err := s.db.WithContext(ctx).
		Where("timestamp >= ?", cutoff).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent history: %w", err)
	}

	latest := make(map[string]Record, len(rows))
	for _, row := range rows {
		latest[row.DeviceID] = row
	}

	out := make([]Record, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	return out, nil
}

// PurgeBefore deletes rows older than cutoff and reports how many went.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge history: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Disabled is the store used when no database is configured or the
// connection could not be opened at startup. Live processing continues;
// durable writes are skipped and the fallback path finds nothing.
type Disabled struct{}

// Append reports the store as disabled.
func (Disabled) Append(ctx context.Context, rec Record) error {
	return ErrDisabled
}

// LatestPerDeviceSince returns no rows.
func (Disabled) LatestPerDeviceSince(ctx context.Context, cutoff time.Time) ([]Record, error) {
	return nil, nil
}

// PurgeBefore purges nothing.
func (Disabled) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
