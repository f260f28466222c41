package model

import "time"

// ReportStatus is the lifecycle state of a report job.
type ReportStatus string

const (
	ReportRunning  ReportStatus = "Running"
	ReportComplete ReportStatus = "Complete"
	ReportFailed   ReportStatus = "Failed"
)

// Terminal reports whether no further transition is allowed.
func (s ReportStatus) Terminal() bool {
	return s == ReportComplete || s == ReportFailed
}

// Report is the persisted record of a report job.
type Report struct {
	ID             int64        `gorm:"primaryKey"`
	ReportID       string       `gorm:"size:100;not null;uniqueIndex"`
	Status         ReportStatus `gorm:"size:20;not null"`
	CreatedAt      time.Time    `gorm:"not null"`
	CompletedAt    *time.Time
	ResultLocation *string `gorm:"size:512"`
}
