package app

import (
	"github.com/talkincode/opspulse/internal/domain"
	"go.uber.org/zap"
)

type settingSchema struct {
	Key         string
	Default     string
	Description string
}

// Runtime-tunable settings. The YAML configuration carries the static
// defaults; these rows allow changing them without a restart.
var defaultSettings = []settingSchema{
	{Key: "monitor.interval", Default: "60", Description: "Metrics collection interval in seconds"},
	{Key: "monitor.retention_days", Default: "30", Description: "Snapshot retention in days"},
	{Key: "monitor.oprlog_days", Default: "365", Description: "Operation log retention in days"},
}

// checkSettings initializes missing sys_config entries.
func (a *Application) checkSettings() {
	for sortid, schema := range defaultSettings {
		category, name, ok := splitKey(schema.Key)
		if !ok {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}

func splitKey(key string) (category, name string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:], i > 0 && i < len(key)-1
		}
	}
	return "", "", false
}
