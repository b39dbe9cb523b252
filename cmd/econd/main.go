package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/econsim/economy/internal/audit"
	"github.com/econsim/economy/internal/config"
	"github.com/econsim/economy/internal/economy"
	"github.com/econsim/economy/internal/storage"
	"github.com/econsim/economy/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create logger
	zapLogger, err := logger.NewLogger(cfg.LogLevel())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Open balance storage
	store, err := storage.Open(cfg.DatabaseDSN(), cfg.CurrencyUnit(), zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open balance storage", zap.Error(err))
	}
	defer store.Close()

	// Central audit sink, persisted alongside the balances
	sink, err := audit.NewSink(zapLogger, store.DB())
	if err != nil {
		zapLogger.Fatal("Failed to create audit sink", zap.Error(err))
	}

	// Economy registry: every account minted from it reports to the sink
	registry, err := economy.NewRegistry(store, cfg, sink, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create economy registry", zap.Error(err))
	}
	registry.RegisterDomain("overworld")

	zapLogger.Info("economy service started",
		zap.String("domain", registry.DefaultDomain()),
		zap.Bool("closed_economy", cfg.ClosedEconomyEnabled()),
		zap.String("metrics_addr", cfg.MetricsAddr()))

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down economy service")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("metrics server shutdown failed", zap.Error(err))
	}
}
