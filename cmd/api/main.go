package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/hospital-api/internal/config"
	adminHandler "github.com/jwalitptl/hospital-api/internal/handler/admin"
	appointmentHandler "github.com/jwalitptl/hospital-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/hospital-api/internal/handler/auth"
	"github.com/jwalitptl/hospital-api/internal/handler/directory"
	doctorHandler "github.com/jwalitptl/hospital-api/internal/handler/doctor"
	"github.com/jwalitptl/hospital-api/internal/handler/health"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/repository/postgres"
	"github.com/jwalitptl/hospital-api/internal/router"
	appointmentService "github.com/jwalitptl/hospital-api/internal/service/appointment"
	authService "github.com/jwalitptl/hospital-api/internal/service/auth"
	"github.com/jwalitptl/hospital-api/internal/service/booking"
	"github.com/jwalitptl/hospital-api/internal/service/slot"
	"github.com/jwalitptl/hospital-api/internal/service/staff"
	"github.com/jwalitptl/hospital-api/internal/service/token"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := openStore(ctx, cfg, appLog)
	if err != nil {
		appLog.Fatal(err, "failed to open store")
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "api")

	// Initialize services
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authSvc := authService.NewService(store, jwtSvc, hasher, appLog)
	staffSvc := staff.NewService(store, hasher, appLog)
	slotSvc := slot.NewService(store, m, appLog, slot.Options{
		Location:       cfg.Booking.Location(),
		AllowPastDates: cfg.Booking.AllowPastDates,
	})
	bookingSvc := booking.NewService(store, token.NewAllocator(), m, appLog)
	appointmentSvc := appointmentService.NewService(store, m, appLog)

	var rateLimit *middleware.RateLimiterConfig
	if cfg.RateLimit.Enabled {
		rateLimit = &middleware.RateLimiterConfig{
			RPS:       cfg.RateLimit.RequestsPerSecond,
			Burst:     cfg.RateLimit.Burst,
			ClientTTL: cfg.RateLimit.ClientTTL,
		}
	}

	// Setup router
	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		router.Handlers{
			Health:       health.NewHandler(store, reg),
			Auth:         authHandler.NewHandler(authSvc),
			Directory:    directory.NewHandler(staffSvc, slotSvc),
			Appointments: appointmentHandler.NewHandler(bookingSvc, appointmentSvc),
			Doctor:       doctorHandler.NewHandler(slotSvc, staffSvc),
			Admin:        adminHandler.NewHandler(staffSvc),
		},
		m,
		appLog,
		router.RouterConfig{
			Mode:        cfg.Server.Mode,
			Timeout:     cfg.Server.Timeout(),
			RateLimit:   rateLimit,
			CORSConfig:  middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
			MaxBodySize: middleware.DefaultMaxBodySize,
		},
	)
	r.Setup()

	if cfg.Outbox.Inline {
		startOutbox(ctx, cfg, store, m, appLog)
	}

	// Create server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("server listening", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	appLog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(err, "server forced to shutdown")
		os.Exit(1)
	}

	appLog.Info("server exited properly")
}

func openStore(ctx context.Context, cfg *config.Config, appLog *logger.Logger) (repository.Store, error) {
	if cfg.Database.Driver == "memory" {
		appLog.Warn("using the in-memory store; data is lost on exit")
		return memory.NewStore(), nil
	}
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return postgres.NewStore(db), nil
}

// startOutbox relays events from this process. A broker that cannot be
// reached leaves events pending for cmd/worker.
func startOutbox(ctx context.Context, cfg *config.Config, store repository.Store, m *metrics.Metrics, appLog *logger.Logger) {
	broker, err := redis.NewRedisBroker(ctx, cfg.ToBrokerConfig(), appLog.Zerolog())
	if err != nil {
		appLog.Error(err, "outbox disabled: failed to connect to Redis")
		return
	}

	processor, err := worker.NewOutboxProcessor(store, broker, cfg.ToWorkerConfig(), appLog.With("component", "outbox"), m)
	if err != nil {
		broker.Close()
		appLog.Error(err, "outbox disabled: invalid configuration")
		return
	}

	go func() {
		defer broker.Close()
		processor.Start(ctx)
	}()
}
