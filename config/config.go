package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system level configuration
type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WebConfig web server configuration
type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// DBConfig database configuration
type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// LoggerConfig logging configuration
type LoggerConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// MonitorConfig metrics collection configuration
type MonitorConfig struct {
	Enabled       bool `yaml:"enabled" json:"enabled"`
	Interval      int  `yaml:"interval" json:"interval"`             // collection interval in seconds
	RetentionDays int  `yaml:"retention_days" json:"retention_days"` // snapshot retention
}

type AppConfig struct {
	System   SysConfig     `yaml:"system" json:"system"`
	Web      WebConfig     `yaml:"web" json:"web"`
	Database DBConfig      `yaml:"database" json:"database"`
	Logger   LoggerConfig  `yaml:"logger" json:"logger"`
	Monitor  MonitorConfig `yaml:"monitor" json:"monitor"`
}

var DefaultAppConfig = AppConfig{
	System: SysConfig{
		Appid:    "OpsPulse",
		Location: "Asia/Jakarta",
		Workdir:  "/var/opspulse",
		Debug:    false,
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 1816,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "opspulse",
		User:     "postgres",
		Passwd:   "",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LoggerConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/opspulse/opspulse.log",
	},
	Monitor: MonitorConfig{
		Enabled:       true,
		Interval:      60,
		RetentionDays: 30,
	},
}

// LoadConfig reads the YAML configuration file and applies environment
// overrides. A missing file yields the defaults.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := DefaultAppConfig
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrap(err, "read config file")
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}
	setEnvValue("OPSPULSE_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvValue("OPSPULSE_DB_HOST", &cfg.Database.Host)
	setEnvValue("OPSPULSE_DB_NAME", &cfg.Database.Name)
	setEnvValue("OPSPULSE_DB_USER", &cfg.Database.User)
	setEnvValue("OPSPULSE_DB_PWD", &cfg.Database.Passwd)
	setEnvValue("OPSPULSE_DB_TYPE", &cfg.Database.Type)
	setEnvIntValue("OPSPULSE_DB_PORT", &cfg.Database.Port)
	setEnvIntValue("OPSPULSE_WEB_PORT", &cfg.Web.Port)
	setEnvIntValue("OPSPULSE_MONITOR_INTERVAL", &cfg.Monitor.Interval)

	if cfg.Monitor.Interval <= 0 {
		cfg.Monitor.Interval = DefaultAppConfig.Monitor.Interval
	}
	if cfg.Monitor.RetentionDays <= 0 {
		cfg.Monitor.RetentionDays = DefaultAppConfig.Monitor.RetentionDays
	}
	return &cfg, nil
}

func setEnvValue(name string, val *string) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = evalue
	}
}

func setEnvIntValue(name string, val *int) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = cast.ToInt(evalue)
	}
}
