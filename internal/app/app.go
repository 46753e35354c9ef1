package app

import (
	"os"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/opspulse/config"
	"github.com/talkincode/opspulse/internal/domain"
	"github.com/talkincode/opspulse/internal/monitor"
	"github.com/talkincode/opspulse/pkg/common"
	"github.com/talkincode/opspulse/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

// Application is the composition root. It is constructed exactly once at
// startup and owns the single Collector instance; nothing else creates one.
type Application struct {
	appConfig     *config.AppConfig
	gormDB        *gorm.DB
	sched         *cron.Cron
	configManager *ConfigManager
	bus           EventBus.Bus

	recorder   *monitor.Recorder
	store      *monitor.Store
	collector  *monitor.Collector
	summarizer *monitor.Summarizer
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SettingsProvider  = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ MonitorProvider   = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Configure output paths
	zapConfig.OutputPaths = []string{"stdout"}
	if cfg.Logger.FileEnable {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, cfg.Logger.Filename)
	}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	// Initialize gauge storage with workdir convention
	err = metrics.InitMetrics(cfg.System.Workdir)
	if err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	// Ensure database schema is migrated before loading configs
	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.checkSettings()

	// Initialize the configuration manager
	a.configManager = NewConfigManager(a)

	// Monitoring pipeline: recorder -> collector -> store, summaries on top
	a.bus = EventBus.New()
	a.recorder = monitor.NewRecorder()
	a.store = monitor.NewStore(a.gormDB)
	a.summarizer = monitor.NewSummarizer(a.store)
	a.collector = monitor.NewCollector(a.gormDB, a.store, a.recorder,
		monitor.WithEventBus(a.bus))

	a.initJob()

	if cfg.Monitor.Enabled {
		a.collector.Start(a.CollectInterval())
	}
}

// CollectInterval resolves the collection cadence: sys_config override
// first, then the static configuration, then the built-in default.
func (a *Application) CollectInterval() time.Duration {
	if a.configManager != nil {
		if secs := a.configManager.GetInt64("monitor", "interval"); secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if a.appConfig.Monitor.Interval > 0 {
		return time.Duration(a.appConfig.Monitor.Interval) * time.Second
	}
	return monitor.DefaultInterval
}

func (a *Application) MigrateDB(track bool) (err error) {
	if track {
		if err := a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	} else {
		if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	}
	return nil
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

// ConfigMgr returns the configuration manager
func (a *Application) ConfigMgr() *ConfigManager {
	return a.configManager
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Bus returns the process-local event bus
func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// Collector returns the metrics collector
func (a *Application) Collector() *monitor.Collector {
	return a.collector
}

// MetricsStore returns the snapshot store
func (a *Application) MetricsStore() *monitor.Store {
	return a.store
}

// Summarizer returns the windowed read path
func (a *Application) Summarizer() *monitor.Summarizer {
	return a.summarizer
}

// Recorder returns the in-process request/error recorder
func (a *Application) Recorder() *monitor.Recorder {
	return a.recorder
}

// AddOprLog appends an operation log entry. Failures are logged and
// otherwise ignored; the audit trail never blocks the operation itself.
func (a *Application) AddOprLog(name, ip, action, desc string) {
	err := a.gormDB.Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   name,
		OprIp:     ip,
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}).Error
	if err != nil {
		zap.L().Warn("operation log write failed", zap.Error(err))
	}
}

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(category, key string) string {
	return a.configManager.GetString(category, key)
}

// GetSettingsInt64Value retrieves an int64 configuration value
func (a *Application) GetSettingsInt64Value(category, key string) int64 {
	return a.configManager.GetInt64(category, key)
}

// GetSettingsBoolValue retrieves a boolean configuration value
func (a *Application) GetSettingsBoolValue(category, key string) bool {
	return a.configManager.GetBool(category, key)
}

// Release releases application resources
func (a *Application) Release() {
	if a.collector != nil {
		a.collector.Stop()
	}

	if a.sched != nil {
		a.sched.Stop()
	}

	_ = metrics.Close()
	_ = zap.L().Sync()
}
