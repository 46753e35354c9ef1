package app

import (
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/talkincode/opspulse/internal/domain"
	"go.uber.org/zap"
)

const configCacheTTL = 30 * time.Second

// ConfigManager reads runtime-tunable settings from sys_config rows with a
// short-lived cache in front. Missing settings return zero values.
type ConfigManager struct {
	app *Application

	mu       sync.RWMutex
	cache    map[string]string
	cachedAt time.Time
}

func NewConfigManager(app *Application) *ConfigManager {
	return &ConfigManager{
		app:   app,
		cache: make(map[string]string),
	}
}

func (m *ConfigManager) getValue(category, name string) string {
	key := category + "." + name

	m.mu.RLock()
	if time.Since(m.cachedAt) < configCacheTTL {
		if v, ok := m.cache[key]; ok {
			m.mu.RUnlock()
			return v
		}
	}
	m.mu.RUnlock()

	var rows []domain.SysConfig
	if err := m.app.gormDB.Find(&rows).Error; err != nil {
		zap.L().Warn("failed to load sys_config", zap.Error(err))
		return ""
	}

	m.mu.Lock()
	m.cache = make(map[string]string, len(rows))
	for _, row := range rows {
		m.cache[row.Type+"."+row.Name] = row.Value
	}
	m.cachedAt = time.Now()
	value := m.cache[key]
	m.mu.Unlock()
	return value
}

func (m *ConfigManager) GetString(category, name string) string {
	return m.getValue(category, name)
}

func (m *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(m.getValue(category, name))
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(m.getValue(category, name))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(m.getValue(category, name))
}
