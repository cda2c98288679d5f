// Package history is the durable append-only location history. Rows
// are written by the engine, read back by the poll adapter's fallback
// path and by external reporting code, and deleted only by the
// retention sweeper.
package history

import "time"

// Record is one append-only history row.
type Record struct {
	ID        uint      `gorm:"primaryKey"`
	DeviceID  string    `gorm:"column:device_id;index:idx_device_timestamp;not null"`
	Latitude  float64   `gorm:"not null"`
	Longitude float64   `gorm:"not null"`
	Status    string    `gorm:"not null"`
	Timestamp time.Time `gorm:"index:idx_device_timestamp;index:idx_timestamp;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName keeps the table the reporting side already reads from.
func (Record) TableName() string {
	return "livelocations"
}
