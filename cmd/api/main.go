package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/opdline/clinic-queue/internal/api/router"
	"github.com/opdline/clinic-queue/internal/booking"
	"github.com/opdline/clinic-queue/internal/clinic"
	appconfig "github.com/opdline/clinic-queue/internal/config"
	"github.com/opdline/clinic-queue/internal/events"
	"github.com/opdline/clinic-queue/internal/feed"
	"github.com/opdline/clinic-queue/internal/observability/metrics"
	"github.com/opdline/clinic-queue/pkg/logging"
)

func main() {
	// .env is a local development convenience; absence is fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-queue API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := feed.NewHub(logger)
	defer hub.Close()

	queueMetrics := metrics.NewQueueMetrics(prometheus.DefaultRegisterer)

	var (
		repo          booking.Repository
		settingsStore clinic.SettingsStore
		publisher     booking.ChangePublisher
		statsHandler  *clinic.StatsHandler
	)

	memoryMode := cfg.UseMemoryStore || cfg.DatabaseURL == ""
	if memoryMode {
		logger.Warn("running with in-memory stores; state is lost on restart")
		repo = booking.NewInMemoryRepository()
		settingsStore = clinic.NewInMemorySettings().WithTimezone(cfg.ClinicTimezone)
		publisher = events.NewDirectPublisher(hub, logger)
		statsHandler = clinic.NewStatsHandler(booking.NewMemoryStats(repo), logger, time.Now)
	} else {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to reach database", "error", err)
			os.Exit(1)
		}

		repo = booking.NewPostgresRepository(pool)
		store := clinic.NewStore(pool)
		settingsStore = store

		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
			})
			defer func() { _ = rdb.Close() }()
			settingsStore = clinic.NewCachedStore(store, rdb, cfg.SettingsCacheTTL, logger)
			logger.Info("settings cache enabled", "addr", cfg.RedisAddr)
		}

		outbox := events.NewOutboxStore(pool)
		publisher = events.NewPublisher(outbox, logger)
		deliverer := events.NewDeliverer(outbox, hub, logger).
			WithBatchSize(int32(cfg.OutboxBatchSize)).
			WithInterval(cfg.OutboxPollInterval)
		go deliverer.Start(ctx)

		statsHandler = clinic.NewStatsHandler(clinic.NewStatsRepository(pool), logger, time.Now)
	}

	service := booking.NewService(repo, settingsStore, logger).
		WithPublisher(publisher).
		WithMetrics(queueMetrics)

	r := router.New(&router.Config{
		Logger:             logger,
		BookingHandler:     booking.NewHandler(service, logger),
		ClinicHandler:      clinic.NewHandler(settingsStore, logger).WithPublisher(publisher),
		StatsHandler:       statsHandler,
		FeedHandler:        hub,
		MetricsHandler:     promhttp.Handler(),
		StaffAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		BookingRatePerSec:  5,
		BookingBurst:       20,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
