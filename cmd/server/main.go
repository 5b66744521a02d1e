package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/api"
	"github.com/clinical-safety-engine/internal/audit"
	"github.com/clinical-safety-engine/internal/config"
	"github.com/clinical-safety-engine/internal/registry"
	"github.com/clinical-safety-engine/internal/service"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	store, err := registry.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open registry store")
	}
	defer store.Close()

	rules, guidelines, interactions, err := registry.LoadOrSeed(ctx, store, cfg.Store.Seed, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load registries")
	}

	auditLogger := audit.NewLogger(logger, cfg.Logging.AuditBuffer)
	defer auditLogger.Close()

	calibration := service.NewCalibrationTracker(newCalibrationSink(cfg.Cache.RedisURL, cfg.Cache.PoolSize, cfg.Cache.MaxRetries, logger), logger)
	go calibration.FlushLoop(ctx, 5*time.Minute)

	gatherer, err := service.NewCatalogEvidenceGatherer(512, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create evidence gatherer")
	}

	validator := service.NewConsistencyValidator(logger)
	analyzer := service.NewDrugSafetyAnalyzer(interactions, validator, logger)
	scorer := service.NewConfidenceScorer(gatherer, calibration, logger)
	orchestrator := service.NewSafetyOrchestrator(
		service.NewRuleEngine(logger), analyzer, rules, guidelines, nil, auditLogger, logger)

	server := api.NewServer(&cfg.Server, orchestrator, analyzer, scorer, rules, interactions, store, logger)

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting clinical safety engine")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

// newLogger builds the process logger from configuration.
func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// newCalibrationSink connects the calibration flush target. Without a
// reachable Redis the tracker still runs, discarding flushed samples.
func newCalibrationSink(redisURL string, poolSize, maxRetries int, logger *logrus.Logger) service.CalibrationSink {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Warn("Invalid Redis URL, calibration samples will not be externalized")
		return nil
	}
	opts.PoolSize = poolSize
	opts.MaxRetries = maxRetries
	return service.NewRedisCalibrationSink(redis.NewClient(opts), "calibration")
}
