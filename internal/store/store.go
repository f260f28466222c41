package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"store-uptime-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Observation and schedule source.
	StoreIDs(ctx context.Context) ([]string, error)
	LatestObservation(ctx context.Context) (time.Time, bool, error)
	CountObservations(ctx context.Context) (int64, error)
	CountBusinessHours(ctx context.Context) (int64, error)
	CountTimezones(ctx context.Context) (int64, error)
	Observations(ctx context.Context, storeID string, since time.Time) ([]model.Observation, error)
	BusinessHours(ctx context.Context, storeID string) ([]model.BusinessHours, error)
	Timezone(ctx context.Context, storeID string) (string, error)

	// Ingestion.
	InsertObservations(ctx context.Context, rows []model.Observation) error
	InsertBusinessHours(ctx context.Context, rows []model.BusinessHours) error
	UpsertTimezones(ctx context.Context, rows []model.StoreTimezone) error

	// Report jobs.
	CreateReport(ctx context.Context, report *model.Report) error
	GetReport(ctx context.Context, reportID string) (model.Report, error)
	FinishReport(ctx context.Context, reportID string, status model.ReportStatus, completedAt time.Time, location *string) error
	CountReports(ctx context.Context, status model.ReportStatus) (int64, error)

	Ping(ctx context.Context) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// StoreIDs returns every distinct store id that has observations, in
// ascending order.
func (s *gormStore) StoreIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&model.Observation{}).
		Distinct("store_id").
		Order("store_id").
		Pluck("store_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list store ids: %w", err)
	}
	return ids, nil
}

// LatestObservation returns the maximum observed timestamp across all
// stores. The boolean is false when there are no observations.
func (s *gormStore) LatestObservation(ctx context.Context) (time.Time, bool, error) {
	var rows []model.Observation
	if err := s.db.WithContext(ctx).
		Order("timestamp_utc DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return time.Time{}, false, fmt.Errorf("failed to fetch latest observation: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].TimestampUTC.UTC(), true, nil
}

func (s *gormStore) CountObservations(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Observation{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}

func (s *gormStore) CountBusinessHours(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.BusinessHours{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count business hours: %w", err)
	}
	return n, nil
}

func (s *gormStore) CountTimezones(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.StoreTimezone{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count timezones: %w", err)
	}
	return n, nil
}

// Observations returns a store's observations at or after since, oldest first.
func (s *gormStore) Observations(ctx context.Context, storeID string, since time.Time) ([]model.Observation, error) {
	var rows []model.Observation
	if err := s.db.WithContext(ctx).
		Where("store_id = ? AND timestamp_utc >= ?", storeID, since.UTC()).
		Order("timestamp_utc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *gormStore) BusinessHours(ctx context.Context, storeID string) ([]model.BusinessHours, error) {
	var rows []model.BusinessHours
	if err := s.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("day_of_week, start_time_local").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Timezone returns the store's timezone name, or "" when it has none.
func (s *gormStore) Timezone(ctx context.Context, storeID string) (string, error) {
	// Find instead of First so a missing record is not logged as an error.
	var rows []model.StoreTimezone
	if err := s.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].TimezoneStr, nil
}

func (s *gormStore) InsertObservations(ctx context.Context, rows []model.Observation) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&rows, len(rows)).Error; err != nil {
			return fmt.Errorf("failed to insert %d observations: %w", len(rows), err)
		}
		return nil
	})
}

func (s *gormStore) InsertBusinessHours(ctx context.Context, rows []model.BusinessHours) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&rows, len(rows)).Error; err != nil {
			return fmt.Errorf("failed to insert %d business hours: %w", len(rows), err)
		}
		return nil
	})
}

// UpsertTimezones inserts timezone records, replacing the name of stores
// that already have one.
func (s *gormStore) UpsertTimezones(ctx context.Context, rows []model.StoreTimezone) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"timezone_str"}),
		}).CreateInBatches(&rows, len(rows)).Error; err != nil {
			return fmt.Errorf("failed to upsert %d timezones: %w", len(rows), err)
		}
		return nil
	})
}

func (s *gormStore) CreateReport(ctx context.Context, report *model.Report) error {
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report %s: %w", report.ReportID, err)
	}
	return nil
}

func (s *gormStore) GetReport(ctx context.Context, reportID string) (model.Report, error) {
	var report model.Report
	err := s.db.WithContext(ctx).Where("report_id = ?", reportID).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Report{}, ErrReportNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("failed to fetch report %s: %w", reportID, err)
	}
	return report, nil
}

// FinishReport moves a Running report to a terminal status in a single
// statement. It returns ErrReportNotRunning if the report is unknown or
// already terminal.
func (s *gormStore) FinishReport(ctx context.Context, reportID string, status model.ReportStatus, completedAt time.Time, location *string) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finish report %s with non-terminal status %q", reportID, status)
	}

	res := s.db.WithContext(ctx).
		Model(&model.Report{}).
		Where("report_id = ? AND status = ?", reportID, model.ReportRunning).
		Updates(map[string]any{
			"status":          status,
			"completed_at":    completedAt.UTC(),
			"result_location": location,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finish report %s: %w", reportID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReportNotRunning
	}
	return nil
}

func (s *gormStore) CountReports(ctx context.Context, status model.ReportStatus) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Report{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s reports: %w", status, err)
	}
	return n, nil
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
