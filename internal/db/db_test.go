package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"store-uptime-backend/config"
	"store-uptime-backend/internal/model"
)

func TestIsPostgres(t *testing.T) {
	assert.True(t, isPostgres("postgres://u:p@localhost/db"))
	assert.True(t, isPostgres("postgresql://u:p@localhost/db"))
	assert.True(t, isPostgres(" host=localhost user=u dbname=db"))
	assert.False(t, isPostgres("store_monitoring.db"))
	assert.False(t, isPostgres("file::memory:?cache=shared"))
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, logLevel("INFO"))
	assert.Equal(t, logger.Silent, logLevel("silent"))
	assert.Equal(t, logger.Warn, logLevel(""))
}

func TestInit_SQLiteMigrates(t *testing.T) {
	cfg := &config.DatabaseConfig{
		DSN:          filepath.Join(t.TempDir(), "uptime.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}

	gormDB, err := Init(cfg, zap.NewNop())
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	for _, table := range []any{&model.Observation{}, &model.BusinessHours{}, &model.StoreTimezone{}, &model.Report{}} {
		assert.True(t, gormDB.Migrator().HasTable(table))
	}
	assert.True(t, gormDB.Migrator().HasIndex(&model.Observation{}, "idx_observation_store_time"))
}
