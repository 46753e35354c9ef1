package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/talkincode/opspulse/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// getDatabase opens the configured database. sqlite keeps its file under
// the workdir data directory; anything else is treated as postgres.
func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var db *gorm.DB
	var err error
	switch cfg.Type {
	case "sqlite":
		dbfile := filepath.Join(workdir, "data", cfg.Name+".db")
		db, err = gorm.Open(sqlite.Open(dbfile), gormCfg)
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	}
	if err != nil {
		zap.S().Panicf("database connection failed: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Panicf("database pool setup failed: %v", err)
	}
	if cfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.IdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db
}
