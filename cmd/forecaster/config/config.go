// Package config provides configuration parsing and management for the
// forecasting service.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains
// all runtime configuration for the service including:
//   - HTTP server settings (listen address, TLS)
//   - Storage backend selection (memory or redis) and Redis connection
//   - Pipeline defaults (forecast horizon, test fraction, estimator list)
//   - Alert thresholds and reorder economics (lead time)
//   - Weather provider settings (simulated, or an HTTP API with gjson paths)
//   - Logging configuration (level, format)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	if err := cfg.Validate(); err != nil { ... }
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/models"
	"github.com/InsaneAbhishek/inventoryai/pkg/tls"
)

// Config holds all forecasting service configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	StoreTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	TLS tls.Config

	HorizonDays   int
	TestFraction  float64
	Estimators    string
	AlertLow      float64
	AlertCritical float64
	LeadTimeDays  int

	WeatherURL        string
	WeatherDatePath   string
	WeatherTempPath   string
	WeatherHumidPath  string
	WeatherPrecipPath string
	WeatherWindPath   string
	HolidayCountry    string
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are used as fallbacks when flags are not
// provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	flag.DurationVar(&cfg.StoreTTL, "store-ttl", getEnvDuration("STORE_TTL", 24*time.Hour), "In-memory artifact TTL")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis artifact TTL")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.IntVar(&cfg.HorizonDays, "horizon-days", getEnvInt("HORIZON_DAYS", 30), "Default forecast horizon in days")
	flag.Float64Var(&cfg.TestFraction, "test-fraction", getEnvFloat("TEST_FRACTION", 0.2), "Trailing fraction of rows held out for evaluation")
	flag.StringVar(&cfg.Estimators, "estimators", getEnv("ESTIMATORS", ""), "Comma-separated estimators to train (empty trains all): random_forest, gradient_boosting, linear_regression")
	flag.Float64Var(&cfg.AlertLow, "alert-low", getEnvFloat("ALERT_LOW", 100), "Forecast demand below this raises a low alert")
	flag.Float64Var(&cfg.AlertCritical, "alert-critical", getEnvFloat("ALERT_CRITICAL", 50), "Forecast demand below this raises a critical alert")
	flag.IntVar(&cfg.LeadTimeDays, "lead-time-days", getEnvInt("LEAD_TIME_DAYS", 7), "Supplier lead time for reorder economics")

	flag.StringVar(&cfg.WeatherURL, "weather-url", getEnv("WEATHER_URL", ""), "Weather API URL template (empty uses simulated weather)")
	flag.StringVar(&cfg.WeatherDatePath, "weather-date-path", getEnv("WEATHER_DATE_PATH", "daily.time"), "gjson path to the date array in the weather response")
	flag.StringVar(&cfg.WeatherTempPath, "weather-temp-path", getEnv("WEATHER_TEMP_PATH", "daily.temperature_2m_mean"), "gjson path to the temperature array")
	flag.StringVar(&cfg.WeatherHumidPath, "weather-humidity-path", getEnv("WEATHER_HUMIDITY_PATH", ""), "gjson path to the humidity array (optional)")
	flag.StringVar(&cfg.WeatherPrecipPath, "weather-precip-path", getEnv("WEATHER_PRECIP_PATH", ""), "gjson path to the precipitation array (optional)")
	flag.StringVar(&cfg.WeatherWindPath, "weather-wind-path", getEnv("WEATHER_WIND_PATH", ""), "gjson path to the wind speed array (optional)")
	flag.StringVar(&cfg.HolidayCountry, "holiday-country", getEnv("HOLIDAY_COUNTRY", "US"), "Country code attached to holiday rows")

	flag.Parse()

	return cfg
}

// Validate checks the parsed configuration for values no backend can honor.
func (c *Config) Validate() error {
	if c.Storage != "memory" && c.Storage != "redis" {
		return fmt.Errorf("invalid storage backend %q (must be memory or redis)", c.Storage)
	}
	if c.Storage == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("redis-addr is required when storage=redis")
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q (must be text or json)", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.HorizonDays <= 0 {
		return fmt.Errorf("horizon-days must be > 0")
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("test-fraction must be in (0, 1)")
	}
	if c.AlertCritical > c.AlertLow {
		return fmt.Errorf("alert-critical (%g) cannot exceed alert-low (%g)", c.AlertCritical, c.AlertLow)
	}
	if c.LeadTimeDays <= 0 {
		return fmt.Errorf("lead-time-days must be > 0")
	}

	if _, err := c.EstimatorKinds(); err != nil {
		return err
	}

	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}

	return nil
}

// EstimatorKinds resolves the configured estimator list. An empty setting
// means every supported estimator.
func (c *Config) EstimatorKinds() ([]models.Kind, error) {
	if strings.TrimSpace(c.Estimators) == "" {
		return models.Kinds(), nil
	}

	var kinds []models.Kind
	for _, name := range strings.Split(c.Estimators, ",") {
		kind, err := models.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("estimators: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
