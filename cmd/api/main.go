package main

import (
	"context"
	"crypto/tls"
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

	"github.com/clinicdesk/clinicdesk/internal/api/router"
	"github.com/clinicdesk/clinicdesk/internal/availability"
	"github.com/clinicdesk/clinicdesk/internal/catalog"
	appconfig "github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/events"
	"github.com/clinicdesk/clinicdesk/internal/http/handlers"
	"github.com/clinicdesk/clinicdesk/internal/observability/metrics"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinicdesk API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The catalog cache degrades to direct reads, so this is not fatal.
		logger.Warn("redis unreachable, catalog cache will fall through", "error", err)
	}

	schedMetrics := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)

	catalogStore := catalog.NewStore(pool)
	catalogCache := catalog.NewCache(redisClient, catalogStore, cfg.CatalogCacheTTL, logger)

	outbox := events.NewOutboxStore(pool)
	hub := events.NewHub()

	scheduleStore := schedule.NewStore(pool)
	scheduleService := schedule.NewService(scheduleStore, catalogCache, outbox, schedMetrics, logger)

	availabilityService := availability.NewService(catalogCache, scheduleStore, schedMetrics, logger)

	deliverer := events.NewDeliverer(outbox, hub, logger).WithInterval(cfg.OutboxInterval)
	go deliverer.Start(ctx)

	routerCfg := &router.Config{
		Logger:       logger,
		Availability: handlers.NewAvailabilityHandler(availabilityService, cfg.AvailabilityTimeout, logger),
		Bookings:     handlers.NewBookingsHandler(scheduleService, logger),
		Procedures:   handlers.NewProceduresHandler(catalogCache, logger),
		CalendarWS:   handlers.NewCalendarWSHandler(hub, logger),
		CalendarSettings: handlers.NewCalendarSettingsHandler(handlers.CalendarSettings{
			ColumnWidth:          cfg.GridColumnWidth,
			RowHeight:            cfg.GridRowHeight,
			HeaderOffset:         cfg.GridHeaderOffset,
			SlotMinutes:          cfg.GridSlotMinutes,
			ValidationDebounceMS: int(cfg.ValidationDebounce / time.Millisecond),
		}),
		StaffAuthSecret: cfg.StaffJWTSecret,
		MetricsHandler:  promhttp.Handler(),
	}
	r := router.New(routerCfg)

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
			stop()
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
