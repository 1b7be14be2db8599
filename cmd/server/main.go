// Package main provides the API server entry point for the holdings
// valuation engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vault-holdings/internal/adapter"
	"github.com/vault-holdings/internal/api"
	"github.com/vault-holdings/internal/config"
	"github.com/vault-holdings/internal/logging"
	"github.com/vault-holdings/internal/service"
	"github.com/vault-holdings/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging
	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Repositories and upstream clients
	eventRepo := storage.NewEventRepository(clickhouse)
	totalsRepo := storage.NewTotalsRepository(postgres)
	priceRepo := storage.NewPriceRepository(postgres)
	responseCache := storage.NewCacheService(redis, cfg.Cache.ResponseTTL)

	directoryClient := adapter.NewVaultDirectoryClient(cfg.Sources.VaultDirectoryURL, cfg.Sources.RequestTimeout)
	sharePriceClient := adapter.NewSharePriceClient(cfg.Sources.SharePriceURL, cfg.Sources.RequestTimeout)
	oracleClient := adapter.NewPriceOracleClient(cfg.Sources.PriceOracleURL, cfg.Sources.RequestTimeout, cfg.Valuation.OracleRequestsPerSec)

	// Services
	metadataService := service.NewMetadataService(directoryClient)
	sharePriceService := service.NewSharePriceService(sharePriceClient)
	priceService := service.NewPriceService(oracleClient, priceRepo, cfg.Valuation)
	valuationService := service.NewValuationService(
		eventRepo,
		totalsRepo,
		metadataService,
		sharePriceService,
		priceService,
		responseCache,
	)

	// HTTP server
	server := api.NewServer(&api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		DefaultPeriodDays: cfg.Valuation.PeriodDays,
		MaxPeriodDays:     365,
	}, valuationService, map[string]api.Pinger{
		"postgres":   postgres,
		"clickhouse": clickhouse,
		"redis":      redis,
	})

	// Start server in a goroutine so we can handle shutdown signals
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Fatal("Server failed")
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}
