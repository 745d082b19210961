package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"crypto-volatility-alerts/internal/asset"
	"crypto-volatility-alerts/internal/logging"
)

// Config materialises application configuration. Loaded once at startup
// and immutable for the process lifetime.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Source    SourceConfig    `mapstructure:"source"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig covers the optional latest-quote cache. Empty addr
// disables caching entirely.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SchedulerConfig governs sampling cadence and pipeline bounds.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	StageTimeout    time.Duration `mapstructure:"stage_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// SourceConfig captures CoinGecko connectivity.
type SourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	VsCurrency     string        `mapstructure:"vs_currency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Assets         []string      `mapstructure:"assets"`
}

// DetectorConfig defines the volatility window and threshold.
type DetectorConfig struct {
	Window       time.Duration `mapstructure:"window"`
	ThresholdPct float64       `mapstructure:"threshold_pct"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRYPTOWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cryptowatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.stage_timeout", "30s")
	v.SetDefault("scheduler.shutdown_timeout", "30s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x63727970))

	v.SetDefault("source.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("source.vs_currency", "usd")
	v.SetDefault("source.request_timeout", "10s")
	v.SetDefault("source.user_agent", "cryptowatcher/1.0")
	v.SetDefault("source.assets", []string{"BTC", "ETH", "XRP"})

	v.SetDefault("detector.window", "5m")
	v.SetDefault("detector.threshold_pct", 2.0)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.StageTimeout <= 0 {
		return fmt.Errorf("scheduler.stage_timeout must be greater than zero")
	}
	if c.Detector.Window <= 0 {
		return fmt.Errorf("detector.window must be greater than zero")
	}
	if c.Detector.ThresholdPct < 0 {
		return fmt.Errorf("detector.threshold_pct cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if len(c.Source.Assets) == 0 {
		return fmt.Errorf("source.assets must name at least one asset")
	}
	if _, err := c.Assets(); err != nil {
		return err
	}
	if c.Alerting.Enabled && c.Alerting.WebhookURL == "" {
		return fmt.Errorf("alerting.webhook_url is required when alerting is enabled")
	}
	return nil
}

// Assets resolves the configured symbols into the closed asset set.
func (c *Config) Assets() ([]asset.Asset, error) {
	return asset.ParseList(c.Source.Assets)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
