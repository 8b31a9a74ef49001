package config

import (
	"fmt"
	"strings"

	"github.com/djlord-it/linkswap/internal/stats"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			add("DATABASE_URL", "required when STORE_BACKEND=postgres")
		}
	case BackendSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			add("SQLITE_PATH", "required when STORE_BACKEND=sqlite")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			add("REDIS_ADDR", "required when STORE_BACKEND=redis")
		}
		if strings.Contains(cfg.RedisPrefix, " ") {
			add("REDIS_PREFIX", "must not contain spaces")
		}
	default:
		add("STORE_BACKEND", "must be 'postgres', 'sqlite' or 'redis', got %q", cfg.StoreBackend)
	}

	if cfg.DBOpTimeout <= 0 {
		add("DB_OP_TIMEOUT", "must be positive")
	}
	if cfg.DBMaxOpenConns <= 0 {
		add("DB_MAX_OPEN_CONNS", "must be positive")
	}
	if cfg.DBMaxIdleConns < 0 {
		add("DB_MAX_IDLE_CONNS", "must not be negative")
	}
	if cfg.HTTPShutdownTimeout <= 0 {
		add("HTTP_SHUTDOWN_TIMEOUT", "must be positive")
	}

	if cfg.MetricsEnabled && !strings.HasPrefix(cfg.MetricsPath, "/") {
		add("METRICS_PATH", "must start with '/', got %q", cfg.MetricsPath)
	}

	if cfg.InterstitialRatio <= 0 {
		add("INTERSTITIAL_RATIO", "must be positive")
	}
	if cfg.InterstitialMinimum < 0 {
		add("INTERSTITIAL_MINIMUM", "must not be negative")
	}

	if cfg.CircuitBreakerThreshold < 0 {
		add("CIRCUIT_BREAKER_THRESHOLD", "must not be negative (0 disables)")
	}
	if cfg.CircuitBreakerThreshold > 0 && cfg.CircuitBreakerCooldown <= 0 {
		add("CIRCUIT_BREAKER_COOLDOWN", "must be positive when the circuit breaker is enabled")
	}

	if cfg.StatsEnabled() {
		if _, err := stats.ParseSchedule(cfg.StatsSchedule); err != nil {
			add("STATS_SCHEDULE", "invalid cron expression: %v", err)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
