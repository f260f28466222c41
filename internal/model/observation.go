package model

import "time"

// Status values reported by the store pollers.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Observation is a single poll of a store's online status.
type Observation struct {
	ID           int64     `gorm:"primaryKey"`
	StoreID      string    `gorm:"size:100;not null;index:idx_observation_store_time,priority:1"`
	Status       string    `gorm:"size:20;not null"`
	TimestampUTC time.Time `gorm:"column:timestamp_utc;not null;index:idx_observation_store_time,priority:2;index"`
}

// TableName keeps the table name used by the upstream feed.
func (Observation) TableName() string { return "store_status" }
