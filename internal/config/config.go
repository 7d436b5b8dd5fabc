package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Equity      EquityConfig    `mapstructure:"equity"`
	Ledger      LedgerConfig    `mapstructure:"ledger"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AdminAPIKey    string   `mapstructure:"admin_api_key"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

// DSN returns DatabaseURL when set (Supabase pooler URLs), otherwise a keyword DSN.
func (d DatabaseConfig) DSN() string {
	if d.DatabaseURL != "" {
		return d.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	Password            string `mapstructure:"password"`
	DB                  int    `mapstructure:"db"`
	InvalidationChannel string `mapstructure:"invalidation_channel"`
}

// CacheConfig holds the TTL per dataset kind.
type CacheConfig struct {
	TradesTTL string `mapstructure:"trades_ttl"`
	ShadowTTL string `mapstructure:"shadow_ttl"`
	LedgerTTL string `mapstructure:"ledger_ttl"`
}

type EquityConfig struct {
	BaseEquity float64 `mapstructure:"base_equity"`
}

// LedgerConfig tunes calls to the ledger store.
type LedgerConfig struct {
	QueryTimeout        string  `mapstructure:"query_timeout"`
	BreakerMaxFailures  uint32  `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout  string  `mapstructure:"breaker_open_timeout"`
	BreakerFailureRatio float64 `mapstructure:"breaker_failure_ratio"`
	LatestExitsDefault  int     `mapstructure:"latest_exits_default"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	LogLevel       string `mapstructure:"log_level"`
}

// Durations is the parsed form of the string durations in Config.
type Durations struct {
	TradesTTL          time.Duration
	ShadowTTL          time.Duration
	LedgerTTL          time.Duration
	QueryTimeout       time.Duration
	BreakerOpenTimeout time.Duration
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}
	if err := v.BindEnv("equity.base_equity", "BASE_EQUITY"); err != nil {
		return nil, fmt.Errorf("failed to bind BASE_EQUITY environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the values the engine cannot run without.
func (c *Config) Validate() error {
	if math.IsNaN(c.Equity.BaseEquity) || math.IsInf(c.Equity.BaseEquity, 0) {
		return errors.New("equity.base_equity must be a finite number")
	}
	if c.Ledger.LatestExitsDefault < 0 {
		return fmt.Errorf("ledger.latest_exits_default must be >= 0, got %d", c.Ledger.LatestExitsDefault)
	}
	if c.Ledger.BreakerFailureRatio < 0 || c.Ledger.BreakerFailureRatio > 1 {
		return fmt.Errorf("ledger.breaker_failure_ratio must be within [0, 1], got %v", c.Ledger.BreakerFailureRatio)
	}
	_, err := c.ParseDurations()
	return err
}

// ParseDurations parses and validates every duration setting. TTLs must be positive.
func (c *Config) ParseDurations() (Durations, error) {
	var d Durations
	fields := []struct {
		name     string
		raw      string
		dst      *time.Duration
		positive bool
	}{
		{"cache.trades_ttl", c.Cache.TradesTTL, &d.TradesTTL, true},
		{"cache.shadow_ttl", c.Cache.ShadowTTL, &d.ShadowTTL, true},
		{"cache.ledger_ttl", c.Cache.LedgerTTL, &d.LedgerTTL, true},
		{"ledger.query_timeout", c.Ledger.QueryTimeout, &d.QueryTimeout, false},
		{"ledger.breaker_open_timeout", c.Ledger.BreakerOpenTimeout, &d.BreakerOpenTimeout, false},
	}
	for _, f := range fields {
		parsed, err := time.ParseDuration(f.raw)
		if err != nil {
			return Durations{}, fmt.Errorf("invalid %s duration: %w", f.name, err)
		}
		if parsed < 0 || (f.positive && parsed == 0) {
			return Durations{}, fmt.Errorf("%s must be positive, got %s", f.name, f.raw)
		}
		*f.dst = parsed
	}
	return d, nil
}

func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.admin_api_key", "")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.invalidation_channel", "ledger_cache:invalidate")

	// Cache
	v.SetDefault("cache.trades_ttl", "30s")
	v.SetDefault("cache.shadow_ttl", "30s")
	v.SetDefault("cache.ledger_ttl", "10s")

	// Equity
	v.SetDefault("equity.base_equity", 100000.0)

	// Ledger
	v.SetDefault("ledger.query_timeout", "15s")
	v.SetDefault("ledger.breaker_max_failures", 5)
	v.SetDefault("ledger.breaker_open_timeout", "30s")
	v.SetDefault("ledger.breaker_failure_ratio", 0.5)
	v.SetDefault("ledger.latest_exits_default", 10)

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "celebrum-ledger")
	v.SetDefault("telemetry.service_version", "1.0.0")
	v.SetDefault("telemetry.log_level", "info")
}
