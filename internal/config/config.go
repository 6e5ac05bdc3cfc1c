package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "HAULLOG_"

	// DriverSQLite 使用本地 SQLite 文件作为存储。
	DriverSQLite = "sqlite"
	// DriverPostgres 使用 PostgreSQL 作为存储。
	DriverPostgres = "postgres"

	defaultConfigFile = "haullog.yaml"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr string
	Port       string
	GinMode    string
	APIKey     string
	Database   DatabaseConfig
	Warehouse  WarehouseConfig
	Schedule   ScheduleConfig
	Log        LogConfig
	Metrics    MetricsConfig
	// ConfigFile 记录实际加载的配置文件，未使用文件时为空。
	ConfigFile string
}

// DatabaseConfig 描述存储驱动与连接串。
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// WarehouseConfig 控制仓库填充的事务粒度。
// BatchSize 为 0 表示整次运行共用一个事务。
type WarehouseConfig struct {
	BatchSize int
}

// ScheduleConfig 配置 serve 模式下的定时填充，Interval 为 0 时关闭。
type ScheduleConfig struct {
	Interval time.Duration
}

// LogConfig 配置 zap 日志级别与输出格式（json/console）。
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig 控制是否暴露 /metrics。
type MetricsConfig struct {
	Enabled bool
}

var sectionPrefixes = []string{"database_", "warehouse_", "schedule_", "log_", "metrics_"}

// Load 依次读取默认值、配置文件、兼容旧版的环境变量以及 HAULLOG_ 前缀环境变量。
// path 为空时尝试当前目录下的 haullog.yaml，文件不存在不视为错误。
func Load(path string) (AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"port":                 "8080",
		"gin_mode":             "release",
		"database.dsn":         "haullog.db",
		"warehouse.batch_size": 0,
		"schedule.interval":    "0s",
		"log.level":            "info",
		"log.format":           "json",
		"metrics.enabled":      true,
	}, "."), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load defaults: %w", err)
	}

	configFile := strings.TrimSpace(path)
	if configFile == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			configFile = defaultConfigFile
		}
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return AppConfig{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	if err := k.Load(confmap.Provider(legacyEnv(), "."), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load legacy env: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load env: %w", err)
	}

	cfg := AppConfig{
		ListenAddr: strings.TrimSpace(k.String("listen_addr")),
		Port:       strings.TrimSpace(k.String("port")),
		GinMode:    strings.TrimSpace(k.String("gin_mode")),
		APIKey:     strings.TrimSpace(k.String("api_key")),
		Database: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(k.String("database.driver"))),
			DSN:    strings.TrimSpace(k.String("database.dsn")),
		},
		Warehouse: WarehouseConfig{BatchSize: k.Int("warehouse.batch_size")},
		Schedule:  ScheduleConfig{Interval: k.Duration("schedule.interval")},
		Log: LogConfig{
			Level:  strings.TrimSpace(k.String("log.level")),
			Format: strings.TrimSpace(k.String("log.format")),
		},
		Metrics:    MetricsConfig{Enabled: k.Bool("metrics.enabled")},
		ConfigFile: configFile,
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = inferDriver(cfg.Database.DSN)
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Warehouse.BatchSize < 0 {
		return fmt.Errorf("warehouse batch size must not be negative")
	}
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("schedule interval must not be negative")
	}
	return nil
}

// envKey 将 HAULLOG_DATABASE_DSN 转换为 database.dsn，顶层键保持下划线。
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, prefix := range sectionPrefixes {
		if strings.HasPrefix(key, prefix) {
			return strings.Replace(key, "_", ".", 1)
		}
	}
	return key
}

// legacyEnv 兼容旧部署使用的 DATABASE_URL / INTERNAL_API_KEY / PORT / GIN_MODE。
func legacyEnv() map[string]interface{} {
	values := map[string]interface{}{}
	mapping := map[string]string{
		"DATABASE_URL":     "database.dsn",
		"INTERNAL_API_KEY": "api_key",
		"PORT":             "port",
		"LISTEN_ADDR":      "listen_addr",
		"GIN_MODE":         "gin_mode",
	}
	for envName, key := range mapping {
		if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
			values[key] = value
		}
	}
	return values
}

func inferDriver(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") || strings.Contains(lower, "host=") {
		return DriverPostgres
	}
	return DriverSQLite
}
