package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	meridian "github.com/meridianlive/meridian-go"
	"github.com/meridianlive/meridian-go/internal/archive"
	"github.com/meridianlive/meridian-go/internal/collector"
	"github.com/meridianlive/meridian-go/internal/config"
	"github.com/meridianlive/meridian-go/internal/health"
)

// Command meridian-collector periodically reads configured facility
// metrics through the SDK and archives the samples.
//
// The daemon supports:
//   - Cron-scheduled collection over a trailing window
//   - Pluggable archive backends (PostgreSQL/TimescaleDB, MySQL, SQLite, MQTT)
//   - Hot reload of the collection filter on config changes
//   - Liveness, readiness, and Prometheus metrics endpoints
//
// Usage:
//
//	meridian-collector [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)
	registry := prometheus.NewRegistry()

	client, err := meridian.NewClient(meridian.ClientConfig{
		RefreshToken:    cfg.Platform.RefreshToken,
		CredentialsFile: cfg.Platform.CredentialsFile,
		BaseURL:         cfg.Platform.BaseURL,
		Timeout:         cfg.Platform.Timeout.Std(),
		Logger:          logger,
		Debug:           cfg.Platform.Debug,
		RateLimit:       cfg.Platform.RateLimit,
		RateBurst:       cfg.Platform.RateBurst,
		Metrics:         meridian.NewClientMetrics(registry),
	})
	if err != nil {
		logger.Fatalf("Failed to create platform client: %v", err)
	}

	reader := meridian.NewMetricsReader(client, meridian.ReaderConfig{
		Logger:                  logger,
		MaxPointBatch:           cfg.Collector.MaxPointBatch,
		MaxConcurrentFacilities: cfg.Collector.MaxConcurrentFacilities,
		StrictResolution:        cfg.Collector.StrictResolution,
	})

	store, err := openBackends(cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to open archive backends: %v", err)
	}
	defer store.Close()

	coll := collector.New(reader, store, cfg.Collector.Filter(), collector.Config{
		Schedule: cfg.Collector.Schedule,
		Window:   cfg.Collector.Window.Std(),
		Interval: cfg.Collector.Interval.Std(),
	}, logger, collector.NewMetrics(registry))

	healthSrv := health.New(cfg.Health.Address, coll.Status, registry, logger)

	// Swap the collection filter when the config file changes.
	if err := config.Watch(*configPath, logger, func(next *config.Config) {
		if err := coll.SetFilter(next.Collector.Filter()); err != nil {
			logger.WithError(err).Warn("rejected filter from reloaded configuration")
			return
		}
		logger.Info("collection filter updated")
	}); err != nil {
		logger.WithError(err).Warn("configuration watch disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First collection immediately, then on the cron schedule.
	go func() {
		runCtx, cancelRun := context.WithTimeout(ctx, 2*time.Minute)
		defer cancelRun()
		if err := coll.Collect(runCtx); err != nil {
			logger.WithError(err).Error("initial collection failed")
		}
	}()

	if err := coll.Start(); err != nil {
		logger.Fatalf("Failed to start collector: %v", err)
	}
	healthSrv.Start()

	logger.WithFields(logrus.Fields{
		"schedule": cfg.Collector.Schedule,
		"health":   cfg.Health.Address,
	}).Info("collector started")

	waitForShutdown(ctx, logger)

	coll.Stop()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("health server shutdown incomplete")
	}
	logger.Info("collector stopped")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// openBackends opens every configured backend behind one manager.
func openBackends(cfg config.StorageConfig, logger *logrus.Logger) (*archive.Manager, error) {
	var backends []archive.Storage
	if cfg.Postgres != nil {
		s, err := archive.OpenDatabase("postgres", cfg.Postgres.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		backends = append(backends, s)
	}
	if cfg.MySQL != nil {
		s, err := archive.OpenDatabase("mysql", cfg.MySQL.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("mysql: %w", err)
		}
		backends = append(backends, s)
	}
	if cfg.SQLite != nil {
		s, err := archive.OpenDatabase("sqlite", cfg.SQLite.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		backends = append(backends, s)
	}
	if cfg.MQTT != nil {
		s, err := archive.NewMQTTStorage(archive.MQTTConfig{
			BrokerURL: cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			Topic:     cfg.MQTT.Topic,
			QoS:       byte(cfg.MQTT.QoS),
		})
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		backends = append(backends, s)
	}
	return archive.NewManager(logger, backends...), nil
}

func waitForShutdown(ctx context.Context, logger *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, initiating shutdown")
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("initiating shutdown")
	}
}
