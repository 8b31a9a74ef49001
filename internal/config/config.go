package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// StatsDisabled turns off the scheduled stats collector.
const StatsDisabled = "off"

// Config holds all configuration for the linkswap service.
// Values are loaded from environment variables; see the serve command help
// for the full list.
type Config struct {
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL  string `env:"DATABASE_URL"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"linkswap.db"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"linkswap"`

	HTTPAddr string `env:"HTTP_ADDR"`
	Port     string `env:"PORT"`

	DBOpTimeout       time.Duration `env:"DB_OP_TIMEOUT" envDefault:"5s"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`

	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"false"`
	MetricsPath    string `env:"METRICS_PATH" envDefault:"/metrics"`
	MetricsPort    string `env:"METRICS_PORT" envDefault:"9090"`

	InterstitialRatio   float64 `env:"INTERSTITIAL_RATIO" envDefault:"1.2"`
	InterstitialMinimum int64   `env:"INTERSTITIAL_MINIMUM" envDefault:"5"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold int           `env:"CIRCUIT_BREAKER_THRESHOLD" envDefault:"5"`
	CircuitBreakerCooldown  time.Duration `env:"CIRCUIT_BREAKER_COOLDOWN" envDefault:"30s"`

	// StatsSchedule is a five-field cron expression, or "off".
	StatsSchedule string `env:"STATS_SCHEDULE" envDefault:"*/5 * * * *"`

	// OTelEndpoint is an OTLP/HTTP collector URL. Empty disables tracing.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads configuration from environment variables with defaults.
// It fails only when a variable cannot be parsed into its field type;
// semantic checks are done by Validate.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	// Support platforms that only inject PORT.
	if cfg.HTTPAddr == "" {
		if cfg.Port != "" {
			cfg.HTTPAddr = ":" + cfg.Port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	return cfg, nil
}

// StatsEnabled reports whether the scheduled stats collector should run.
func (c Config) StatsEnabled() bool {
	return !strings.EqualFold(strings.TrimSpace(c.StatsSchedule), StatsDisabled)
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		StoreBackend            string  `json:"store_backend"`
		DatabaseURL             string  `json:"database_url,omitempty"`
		SQLitePath              string  `json:"sqlite_path,omitempty"`
		RedisAddr               string  `json:"redis_addr,omitempty"`
		RedisPassword           string  `json:"redis_password,omitempty"`
		RedisPrefix             string  `json:"redis_prefix,omitempty"`
		HTTPAddr                string  `json:"http_addr"`
		DBOpTimeout             string  `json:"db_op_timeout"`
		DBMaxOpenConns          int     `json:"db_max_open_conns"`
		DBMaxIdleConns          int     `json:"db_max_idle_conns"`
		DBConnMaxLifetime       string  `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime       string  `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout     string  `json:"http_shutdown_timeout"`
		MetricsEnabled          bool    `json:"metrics_enabled"`
		MetricsPath             string  `json:"metrics_path"`
		MetricsPort             string  `json:"metrics_port"`
		InterstitialRatio       float64 `json:"interstitial_ratio"`
		InterstitialMinimum     int64   `json:"interstitial_minimum"`
		CircuitBreakerThreshold int     `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string  `json:"circuit_breaker_cooldown"`
		StatsSchedule           string  `json:"stats_schedule"`
		OTelEndpoint            string  `json:"otel_endpoint,omitempty"`
	}{
		StoreBackend:            c.StoreBackend,
		DatabaseURL:             maskSecret(c.DatabaseURL),
		RedisAddr:               c.RedisAddr,
		RedisPassword:           maskSecret(c.RedisPassword),
		HTTPAddr:                c.HTTPAddr,
		DBOpTimeout:             c.DBOpTimeout.String(),
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		DBConnMaxLifetime:       c.DBConnMaxLifetime.String(),
		DBConnMaxIdleTime:       c.DBConnMaxIdleTime.String(),
		HTTPShutdownTimeout:     c.HTTPShutdownTimeout.String(),
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		MetricsPort:             c.MetricsPort,
		InterstitialRatio:       c.InterstitialRatio,
		InterstitialMinimum:     c.InterstitialMinimum,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldown.String(),
		StatsSchedule:           c.StatsSchedule,
		OTelEndpoint:            c.OTelEndpoint,
	}
	switch c.StoreBackend {
	case BackendSQLite:
		masked.SQLitePath = c.SQLitePath
	case BackendRedis:
		masked.RedisPrefix = c.RedisPrefix
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
