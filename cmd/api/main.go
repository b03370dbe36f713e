// Package main is the entry point for the Wayfarer API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/wayfarer/internal/auth"
	"github.com/pkordes/wayfarer/internal/config"
	"github.com/pkordes/wayfarer/internal/events"
	"github.com/pkordes/wayfarer/internal/handler"
	"github.com/pkordes/wayfarer/internal/logging"
	"github.com/pkordes/wayfarer/internal/metrics"
	"github.com/pkordes/wayfarer/internal/middleware"
	"github.com/pkordes/wayfarer/internal/repo"
	"github.com/pkordes/wayfarer/internal/scheduler"
	"github.com/pkordes/wayfarer/internal/service"
	"github.com/pkordes/wayfarer/migrations"
	"github.com/pkordes/wayfarer/spec"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if cfg.MigrateOnStart {
		if err := migrate(ctx, pool); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	// --- Redis ------------------------------------------------------------
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// --- Events -----------------------------------------------------------
	// Without a broker, events are only logged.
	var publisher events.Publisher = events.NewLogPublisher(logger)
	if cfg.RabbitMQURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventExchange, logger)
		if err != nil {
			slog.Warn("rabbitmq unavailable, logging events instead", "error", err)
		} else {
			publisher = amqpPub
		}
	}
	defer publisher.Close()

	// --- Services ---------------------------------------------------------
	m := metrics.New()

	accounts := repo.NewAccountRepo(pool)
	profiles := repo.NewProfileRepo(pool)
	packages := repo.NewPackageRepo(pool)
	itinerary := repo.NewItineraryRepo(pool)
	media := repo.NewMediaRepo(pool)
	bookings := repo.NewBookingRepo(pool)
	payouts := repo.NewPayoutRepo(pool)
	actions := repo.NewPendingActionRepo(pool)
	activity := repo.NewActivityLogRepo(pool)
	content := repo.NewContentRepo(pool)

	hooks := service.Hooks{Log: logger, Events: publisher, Counters: m, Activity: activity}

	provider := auth.NewProvider(
		accounts,
		auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL),
		auth.NewRedisRegistry(rdb, cfg.RedisPrefix),
		auth.NewRedisLimiter(rdb, cfg.RedisPrefix, cfg.SignInLimit, cfg.SignInWindow),
		publisher,
		logger,
		auth.Options{RefreshTTL: cfg.RefreshTokenTTL, RequireConfirmation: cfg.RequireEmailConfirmation},
	)
	adminSvc := service.NewAdminService(service.AdminRepos{
		Profiles: profiles,
		Packages: packages,
		Bookings: bookings,
		Payouts:  payouts,
		Actions:  actions,
		Activity: activity,
	}, hooks)

	srv := handler.NewServer(handler.Services{
		Auth:     provider,
		Profiles: service.NewProfileService(profiles),
		Packages: service.NewPackageService(packages, itinerary, media, actions, hooks),
		Bookings: service.NewBookingService(bookings, packages, hooks),
		Admin:    adminSvc,
		Export:   service.NewExportService(bookings),
		Content:  service.NewContentService(content, hooks),
		SignIns:  m,
		Log:      logger,
		Location: cfg.Location(),
		OpenAPI:  spec.OpenAPI,
	})

	// --- Scheduler --------------------------------------------------------
	var jobs *scheduler.Scheduler
	if cfg.PayoutJobSchedule != "" {
		jobs = scheduler.New(adminSvc, cfg.PayoutJobSchedule, cfg.Location(), logger)
		if err := jobs.Start(); err != nil {
			slog.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	// --- Router -----------------------------------------------------------
	// Middleware order: RequestID, RealIP, request log, Recoverer, CORS, body
	// limit, metrics. The request log must sit outside the API's authenticator
	// so it can record the caller the authenticator verifies.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Use(m.Middleware)

	r.Handle("/metrics", m.Handler())
	r.Mount("/", srv.Routes())

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if jobs != nil {
		select {
		case <-jobs.Stop().Done():
		case <-shutdownCtx.Done():
		}
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// migrate applies pending goose migrations through a database/sql handle
// borrowed from the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, res := range results {
		slog.Info("migration applied", "version", res.Source.Version, "duration", res.Duration)
	}
	return nil
}
