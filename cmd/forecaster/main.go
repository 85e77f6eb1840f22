// Command forecaster runs the demand forecasting and inventory optimization
// service.
//
// The service exposes a per-user pipeline over HTTP:
//  1. Upload raw sales records
//  2. Preprocess them into a clean daily table
//  3. Build model features (lags, moving averages, calendar, weather, holidays)
//  4. Train estimators and evaluate them on a held-out tail
//  5. Forecast future demand with confidence bounds
//  6. Serve insights, threshold alerts and a plain-text report
//
// The HTTP API (port 8080 by default) provides:
//   - POST /data/upload - Ingest raw sales records
//   - POST /pipeline/{preprocess,features,train,forecast} - Run a stage
//   - GET /insights, /alerts, /report - Pipeline artifacts
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	forecaster \
//	  -listen=:8080 \
//	  -storage=redis \
//	  -redis-addr=redis:6379 \
//	  -horizon-days=30 \
//	  -alert-low=100 -alert-critical=50
//
// Environment variables:
//
//	LISTEN         - HTTP listen address (default: :8080)
//	STORAGE        - Storage backend: memory or redis (default: memory)
//	REDIS_ADDR     - Redis server address
//	HORIZON_DAYS   - Default forecast horizon in days (default: 30)
//	TEST_FRACTION  - Held-out fraction for evaluation (default: 0.2)
//	ESTIMATORS     - Estimators to train (default: all)
//	ALERT_LOW      - Low demand alert threshold (default: 100)
//	ALERT_CRITICAL - Critical demand alert threshold (default: 50)
//	LEAD_TIME_DAYS - Supplier lead time for reorder economics (default: 7)
//	WEATHER_URL    - Weather API URL template (default: simulated weather)
//	LOG_LEVEL      - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT     - Logging format: text, json (default: text)
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/InsaneAbhishek/inventoryai/cmd/forecaster/config"
	"github.com/InsaneAbhishek/inventoryai/cmd/forecaster/metrics"
	"github.com/InsaneAbhishek/inventoryai/cmd/forecaster/router"
	"github.com/InsaneAbhishek/inventoryai/pkg/alerts"
	"github.com/InsaneAbhishek/inventoryai/pkg/exogenous"
	"github.com/InsaneAbhishek/inventoryai/pkg/httpx"
	"github.com/InsaneAbhishek/inventoryai/pkg/insights"
	"github.com/InsaneAbhishek/inventoryai/pkg/session"
	"github.com/InsaneAbhishek/inventoryai/pkg/storage"
	"github.com/InsaneAbhishek/inventoryai/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting inventoryai forecaster",
		"version", version,
		"listen", cfg.Listen,
		"storage", cfg.Storage,
		"horizon_days", cfg.HorizonDays,
	)

	store, closeStore, err := newStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	weather, err := newWeather(cfg)
	if err != nil {
		logger.Error("failed to initialize weather provider", "error", err)
		os.Exit(1)
	}

	manager := session.NewManager(session.Deps{
		Store:    store,
		Weather:  weather,
		Holidays: &exogenous.CalendarHolidays{},
		Notifier: &alerts.LogNotifier{Logger: logger},
		Logger:   logger,
		Observer: metrics.New(),

		Horizon:      cfg.HorizonDays,
		TestFraction: cfg.TestFraction,
		Thresholds: alerts.Thresholds{
			Low:      cfg.AlertLow,
			Critical: cfg.AlertCritical,
		},
		Insights:       insights.Options{LeadTimeDays: cfg.LeadTimeDays},
		HolidayCountry: cfg.HolidayCountry,
	})

	mux := router.SetupRoutes(manager, logger)
	handler := httpx.LoggingMiddleware(logger)(httpx.RecoveryMiddleware(logger)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- startServer(httpServer, cfg.TLS)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// newLogger builds the process logger from the configured level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// newStore builds the configured artifact store and a cleanup function.
func newStore(cfg *config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	switch cfg.Storage {
	case "redis":
		store, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis storage", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close redis store", "error", err)
			}
		}, nil
	default:
		store := storage.NewMemoryStoreWithTTL(cfg.StoreTTL, time.Minute)
		logger.Info("using in-memory storage", "ttl", cfg.StoreTTL)
		return store, store.Stop, nil
	}
}

// newWeather selects the weather provider. A configured URL enables the HTTP
// client, which shares the service TLS material for mTLS-protected
// providers; otherwise simulated weather keeps the feature set complete.
func newWeather(cfg *config.Config) (exogenous.WeatherProvider, error) {
	if cfg.WeatherURL == "" {
		return &exogenous.SimulatedWeather{Seed: 42}, nil
	}

	client, err := httpx.NewClient(cfg.TLS, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	return &exogenous.HTTPWeather{
		URL:               cfg.WeatherURL,
		DatePath:          cfg.WeatherDatePath,
		TemperaturePath:   cfg.WeatherTempPath,
		HumidityPath:      cfg.WeatherHumidPath,
		PrecipitationPath: cfg.WeatherPrecipPath,
		WindSpeedPath:     cfg.WeatherWindPath,
		Client:            client,
	}, nil
}

// startServer runs the HTTP server, with TLS when configured.
func startServer(s *httpx.Server, tlsCfg tls.Config) error {
	if !tlsCfg.Enabled {
		return s.Start()
	}

	serverTLS, err := tls.NewServerTLSConfig(tlsCfg.CertFile, tlsCfg.KeyFile, tlsCfg.CAFile)
	if err != nil {
		return fmt.Errorf("create TLS config: %w", err)
	}
	s.SetTLSConfig(serverTLS)
	return s.StartTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
}
