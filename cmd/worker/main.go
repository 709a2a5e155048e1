package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hospital-api/internal/config"
	"github.com/jwalitptl/hospital-api/internal/handler/health"
	"github.com/jwalitptl/hospital-api/internal/repository/postgres"
	cleanup "github.com/jwalitptl/hospital-api/internal/worker"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/worker"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Database.Driver == "memory" {
		log.Fatal().Msg("the worker needs a shared database; the memory driver only works with outbox.inline")
	}

	appLog := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}).With("component", "outbox-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		appLog.Fatal(err, "failed to connect to database")
	}
	store := postgres.NewStore(db)
	defer store.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(ctx, cfg.ToBrokerConfig(), appLog.Zerolog())
	if err != nil {
		appLog.Fatal(err, "failed to create Redis broker")
	}
	defer broker.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	processor, err := worker.NewOutboxProcessor(
		store,
		broker,
		cfg.ToWorkerConfig(),
		appLog,
		metrics.New(reg, "outbox_processor"),
	)
	if err != nil {
		appLog.Fatal(err, "invalid outbox configuration")
	}

	cleaner, err := cleanup.NewOutboxCleanupWorker(store.Outbox(), cfg.Outbox.RetentionDays, cfg.Outbox.CleanupInterval, appLog)
	if err != nil {
		appLog.Fatal(err, "invalid outbox retention configuration")
	}
	go cleaner.Start(ctx)

	// Setup health check endpoints
	healthSrv := setupHealthCheck(cfg.Outbox.HealthPort, health.NewHandler(store, reg), appLog)

	appLog.Info("worker started", "channel", cfg.Redis.Channel, "poll_interval", cfg.Outbox.PollInterval.String())
	processor.Start(ctx)
	appLog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(err, "health server forced to shutdown")
	}
}

func setupHealthCheck(port int, h *health.Handler, appLog *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.RegisterRoutes(engine.Group(""))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal(err, "health check server failed")
		}
	}()
	return srv
}
