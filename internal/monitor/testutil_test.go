package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/talkincode/opspulse/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.MetricSnapshot{}))
	return db
}

func seedSnapshot(t *testing.T, store *Store, ts time.Time, mutate func(*domain.MetricSnapshot)) *domain.MetricSnapshot {
	t.Helper()
	snap := &domain.MetricSnapshot{Timestamp: ts}
	if mutate != nil {
		mutate(snap)
	}
	require.NoError(t, store.Save(snap))
	return snap
}
