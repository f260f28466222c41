package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"store-uptime-backend/internal/model"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteDB opens a private in-memory database with the service schema.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gormDB.AutoMigrate(&model.Observation{}, &model.BusinessHours{}, &model.StoreTimezone{}, &model.Report{}))
	return gormDB
}

func ts(hour, min int) time.Time {
	return time.Date(2023, time.January, 25, hour, min, 0, 0, time.UTC)
}

func TestGormStore_ObservationSource(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))

	latest, ok, err := s.LatestObservation(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, latest.IsZero())

	ids, err := s.StoreIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.InsertObservations(ctx, []model.Observation{
		{StoreID: "b", Status: model.StatusActive, TimestampUTC: ts(10, 0)},
		{StoreID: "a", Status: model.StatusInactive, TimestampUTC: ts(12, 30)},
		{StoreID: "a", Status: model.StatusActive, TimestampUTC: ts(9, 0)},
		{StoreID: "a", Status: model.StatusActive, TimestampUTC: ts(11, 0)},
		// Duplicates are allowed.
		{StoreID: "a", Status: model.StatusActive, TimestampUTC: ts(11, 0)},
	}))

	count, err := s.CountObservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	ids, err = s.StoreIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	latest, ok, err = s.LatestObservation(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ts(12, 30).Equal(latest), "got %s", latest)

	obs, err := s.Observations(ctx, "a", ts(10, 0))
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.True(t, ts(11, 0).Equal(obs[0].TimestampUTC))
	assert.True(t, ts(12, 30).Equal(obs[2].TimestampUTC))
}

func TestGormStore_ScheduleSource(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))

	require.NoError(t, s.InsertBusinessHours(ctx, []model.BusinessHours{
		{StoreID: "a", DayOfWeek: 1, StartTimeLocal: "09:00:00", EndTimeLocal: "17:00:00"},
		{StoreID: "a", DayOfWeek: 0, StartTimeLocal: "22:00:00", EndTimeLocal: "02:00:00"},
		{StoreID: "b", DayOfWeek: 0, StartTimeLocal: "00:00:00", EndTimeLocal: "23:59:59"},
	}))
	require.NoError(t, s.UpsertTimezones(ctx, []model.StoreTimezone{{StoreID: "a", TimezoneStr: "America/Denver"}}))
	require.NoError(t, s.UpsertTimezones(ctx, []model.StoreTimezone{{StoreID: "a", TimezoneStr: "Asia/Tokyo"}}))

	n, err := s.CountBusinessHours(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.CountTimezones(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	hours, err := s.BusinessHours(ctx, "a")
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, 0, hours[0].DayOfWeek)

	hours, err = s.BusinessHours(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, hours)

	name, err := s.Timezone(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", name)

	name, err = s.Timezone(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "", name)
}

func TestGormStore_ReportLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))

	_, err := s.GetReport(ctx, "r1")
	assert.ErrorIs(t, err, ErrReportNotFound)

	require.NoError(t, s.CreateReport(ctx, &model.Report{ReportID: "r1", Status: model.ReportRunning, CreatedAt: ts(8, 0)}))
	require.NoError(t, s.CreateReport(ctx, &model.Report{ReportID: "r2", Status: model.ReportRunning, CreatedAt: ts(8, 0)}))

	running, err := s.CountReports(ctx, model.ReportRunning)
	require.NoError(t, err)
	assert.Equal(t, int64(2), running)

	location := "reports/report_r1.csv"
	require.NoError(t, s.FinishReport(ctx, "r1", model.ReportComplete, ts(8, 5), &location))

	report, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.ReportComplete, report.Status)
	require.NotNil(t, report.CompletedAt)
	assert.True(t, ts(8, 5).Equal(*report.CompletedAt))
	require.NotNil(t, report.ResultLocation)
	assert.Equal(t, location, *report.ResultLocation)

	// Terminal states never change again.
	err = s.FinishReport(ctx, "r1", model.ReportFailed, ts(8, 6), nil)
	assert.ErrorIs(t, err, ErrReportNotRunning)

	require.NoError(t, s.FinishReport(ctx, "r2", model.ReportFailed, ts(8, 7), nil))
	report, err = s.GetReport(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, model.ReportFailed, report.Status)
	assert.Nil(t, report.ResultLocation)

	err = s.FinishReport(ctx, "r2", model.ReportRunning, ts(8, 8), nil)
	assert.Error(t, err)
}

func TestGormStore_FinishReportSQL(t *testing.T) {
	testCases := []struct {
		name         string
		rowsAffected int64
		expectedErr  error
	}{
		{name: "Running report is finished", rowsAffected: 1},
		{name: "Terminal report is left untouched", rowsAffected: 0, expectedErr: ErrReportNotRunning},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newMockDB(t)
			s := NewGormStore(gormDB)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "reports" SET "completed_at"=$1,"result_location"=$2,"status"=$3 WHERE`)).
				WithArgs(Any{}, Any{}, "Failed", "r9", "Running").
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))
			mock.ExpectCommit()

			err := s.FinishReport(context.Background(), "r9", model.ReportFailed, time.Now(), nil)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
