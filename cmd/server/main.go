package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/gridops/netops-engine/internal/audit"
	"github.com/gridops/netops-engine/internal/config"
	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/handlers"
	"github.com/gridops/netops-engine/internal/inventory"
	"github.com/gridops/netops-engine/internal/kpi"
	"github.com/gridops/netops-engine/internal/lifecycle"
	"github.com/gridops/netops-engine/internal/maintenance"
	"github.com/gridops/netops-engine/internal/metrics"
	"github.com/gridops/netops-engine/internal/notification"
	"github.com/gridops/netops-engine/internal/scheduler"
)

const (
	serviceName = "netops-engine"
	version     = "1.0.0"
)

func main() {
	configPath := pflag.String("config", "", "directory containing config.yaml")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)
	logger.Info("Starting NetOps Engine Service",
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", "error", err)
		}
	}()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	faultRepo := database.NewFaultRepository(db, logger)
	componentRepo := database.NewComponentRepository(db, logger)
	inventoryRepo := database.NewInventoryRepository(db, logger)
	maintenanceRepo := database.NewMaintenanceRepository(db, inventoryRepo, logger)
	notificationRepo := database.NewNotificationRepository(db, logger)
	auditRepo := database.NewAuditRepository(db, logger)
	userRepo := database.NewUserRepository(db, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := metrics.NewCollector(registry)

	// Optional KPI cache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unavailable, KPI cache disabled", "error", err)
			redisClient = nil
		}
		if redisClient != nil {
			defer redisClient.Close()
		}
	}

	// Domain wiring
	auditor := audit.NewRecorder(auditRepo, logger, metricsCollector)
	dispatcher := notification.NewDispatcher(notificationRepo, userRepo, logger, metricsCollector)
	synchronizer := lifecycle.NewSynchronizer(componentRepo, auditor, logger)
	faultManager := lifecycle.NewManager(
		faultRepo, componentRepo, userRepo, synchronizer, dispatcher, auditor, logger, metricsCollector)
	ledger := inventory.NewLedger(inventoryRepo, dispatcher, auditor, logger, metricsCollector)
	maintenanceRecorder := maintenance.NewRecorder(
		maintenanceRepo, componentRepo, ledger, auditor, logger)
	aggregator := kpi.NewAggregator(faultRepo, componentRepo, redisClient, cfg.KPI, logger)

	// Background tasks
	taskScheduler := scheduler.New(
		cfg.Scheduler, notificationRepo, auditRepo, inventoryRepo, dispatcher, logger)
	if err := taskScheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// HTTP surface
	httpHandlers := handlers.NewHTTPHandler(
		cfg, logger, faultManager, ledger, maintenanceRecorder, aggregator, notificationRepo)

	router := mux.NewRouter()
	router.Use(handlers.RequestIDMiddleware)
	router.Use(handlers.ActorMiddleware)
	router.Use(handlers.MetricsMiddleware(metricsCollector))
	httpHandlers.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("HTTP server failed", "error", err)
	}

	logger.Info("Shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server gracefully", "error", err)
	}

	taskScheduler.Stop()

	logger.Info("Service shutdown complete")
}

// setupLogging configures structured logging
func setupLogging(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	if cfg.Debug || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: cfg.Debug,
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" || cfg.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, handlerOptions)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOptions)
	}

	logger := slog.New(handler)
	logger = logger.With(
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment,
	)

	slog.SetDefault(logger)
	return logger
}
