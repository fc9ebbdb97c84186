// Package config provides configuration management for the copy-trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Store         StoreConfig        `mapstructure:"store"`
	Signals       SignalsConfig      `mapstructure:"signals"`
	Publish       PublishConfig      `mapstructure:"publish"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`

	// Dir is the directory the config was loaded from.
	Dir string `mapstructure:"-"`
}

// AppConfig holds account defaults.
type AppConfig struct {
	DefaultUser string  `mapstructure:"default_user"`
	InitialCash float64 `mapstructure:"initial_cash"`
	Currency    string  `mapstructure:"currency"`
}

// StoreConfig selects and configures the state backend.
type StoreConfig struct {
	Backend       string `mapstructure:"backend"` // sqlite, redis, memory
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

// SignalsConfig configures where expert signals come from.
type SignalsConfig struct {
	MockEnabled  bool          `mapstructure:"mock_enabled"`
	MockInterval time.Duration `mapstructure:"mock_interval"`
	KafkaEnabled bool          `mapstructure:"kafka_enabled"`
	KafkaBrokers []string      `mapstructure:"kafka_brokers"`
	KafkaGroupID string        `mapstructure:"kafka_group_id"`
	KafkaTopic   string        `mapstructure:"kafka_topic"`
	BufferSize   int           `mapstructure:"buffer_size"`
}

// PublishConfig configures outbound transaction events.
type PublishConfig struct {
	KafkaEnabled bool     `mapstructure:"kafka_enabled"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// HTTPConfig configures the REST server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// SignalRate limits POST /signals per second. Zero disables the limit.
	SignalRate  float64 `mapstructure:"signal_rate"`
	SignalBurst int     `mapstructure:"signal_burst"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Terminal   bool   `mapstructure:"terminal"`
	WebhookURL string `mapstructure:"webhook_url"`
	InboxLimit int    `mapstructure:"inbox_limit"`
}

// LoggingConfig mirrors logging.Config in file form.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// InitialCashDecimal returns the configured starting balance.
func (a AppConfig) InitialCashDecimal() decimal.Decimal {
	return decimal.NewFromFloat(a.InitialCash)
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/copytrader"
	}
	return filepath.Join(home, ".config", "copytrader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by the template and then loaded.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.default_user", "demo")
	v.SetDefault("app.initial_cash", 10000.0)
	v.SetDefault("app.currency", "USD")

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.sqlite_path", "copytrader.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "copytrader")

	v.SetDefault("signals.mock_enabled", true)
	v.SetDefault("signals.mock_interval", 30*time.Second)
	v.SetDefault("signals.kafka_enabled", false)
	v.SetDefault("signals.kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("signals.kafka_group_id", "copytrader")
	v.SetDefault("signals.kafka_topic", "copytrader.signals")
	v.SetDefault("signals.buffer_size", 256)

	v.SetDefault("publish.kafka_enabled", false)
	v.SetDefault("publish.kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("publish.kafka_topic", "copytrader.transactions")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.signal_rate", 50.0)
	v.SetDefault("http.signal_burst", 100)

	v.SetDefault("notifications.terminal", true)
	v.SetDefault("notifications.inbox_limit", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", "logs/copytrader.log")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and read it back
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COPYTRADER_USER"); v != "" {
		cfg.App.DefaultUser = v
	}
	if v := os.Getenv("COPYTRADER_INITIAL_CASH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.InitialCash = f
		}
	}

	// Store
	if v := os.Getenv("COPYTRADER_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("COPYTRADER_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("COPYTRADER_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("COPYTRADER_REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}

	// Kafka
	if v := os.Getenv("COPYTRADER_KAFKA_BROKERS"); v != "" {
		brokers := strings.Split(v, ",")
		cfg.Signals.KafkaBrokers = brokers
		cfg.Publish.KafkaBrokers = brokers
	}

	if v := os.Getenv("COPYTRADER_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("COPYTRADER_WEBHOOK_URL"); v != "" {
		cfg.Notifications.WebhookURL = v
	}
	if v := os.Getenv("COPYTRADER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// resolvePaths anchors relative file paths at the config directory.
func (c *Config) resolvePaths() {
	if c.Dir == "" {
		return
	}
	if c.Store.SQLitePath != "" && !filepath.IsAbs(c.Store.SQLitePath) {
		c.Store.SQLitePath = filepath.Join(c.Dir, c.Store.SQLitePath)
	}
	if c.Logging.FilePath != "" && !filepath.IsAbs(c.Logging.FilePath) {
		c.Logging.FilePath = filepath.Join(c.Dir, c.Logging.FilePath)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.App.DefaultUser) == "" {
		return fmt.Errorf("app.default_user must not be empty")
	}
	if c.App.InitialCash < 0 {
		return fmt.Errorf("app.initial_cash must be non-negative")
	}

	switch c.Store.Backend {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid store backend: %s (must be 'sqlite', 'redis' or 'memory')", c.Store.Backend)
	}

	if c.Signals.MockEnabled && c.Signals.MockInterval <= 0 {
		return fmt.Errorf("signals.mock_interval must be positive")
	}
	if c.Signals.KafkaEnabled && (len(c.Signals.KafkaBrokers) == 0 || c.Signals.KafkaTopic == "") {
		return fmt.Errorf("signals.kafka_brokers and signals.kafka_topic are required when kafka is enabled")
	}
	if c.Publish.KafkaEnabled && (len(c.Publish.KafkaBrokers) == 0 || c.Publish.KafkaTopic == "") {
		return fmt.Errorf("publish.kafka_brokers and publish.kafka_topic are required when kafka is enabled")
	}
	if c.Signals.BufferSize < 0 {
		return fmt.Errorf("signals.buffer_size must be non-negative")
	}
	if c.Notifications.InboxLimit <= 0 {
		return fmt.Errorf("notifications.inbox_limit must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}
