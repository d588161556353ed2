package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/innarclinica/clinic-platform/internal/agenda"
	"github.com/innarclinica/clinic-platform/internal/api/router"
	"github.com/innarclinica/clinic-platform/internal/audit"
	"github.com/innarclinica/clinic-platform/internal/auth"
	"github.com/innarclinica/clinic-platform/internal/availability"
	appconfig "github.com/innarclinica/clinic-platform/internal/config"
	"github.com/innarclinica/clinic-platform/internal/electro"
	"github.com/innarclinica/clinic-platform/internal/notify"
	"github.com/innarclinica/clinic-platform/internal/observability/metrics"
	"github.com/innarclinica/clinic-platform/internal/pacientes"
	"github.com/innarclinica/clinic-platform/internal/recibos"
	"github.com/innarclinica/clinic-platform/internal/users"
	"github.com/innarclinica/clinic-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting clinic API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Error("SESSION_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	// The audit trail rides on database/sql so sqlmock can cover it.
	auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit connection", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	var redisClient *redis.Client
	if !cfg.LoginRateDisabled {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, login rate limiting disabled", "error", err)
			redisClient = nil
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	agendaMetrics := metrics.NewAgendaMetrics(registry)
	electroMetrics := metrics.NewElectroMetrics(registry)

	hub := notify.NewHub(logger)

	auditService := audit.NewService(auditDB, logger)

	usersService := users.NewService(users.NewPostgresRepository(pool), logger, users.WithAudit(auditService))

	issuer := auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionDuration)
	limiter := auth.NewLoginLimiter(redisClient, cfg.LoginMaxFailures, cfg.LoginBlockWindow)
	authService := auth.NewService(usersService, issuer, limiter, auditService, logger)

	availabilityService := availability.NewService(availability.NewPostgresRepository(pool), logger)

	engine := agenda.NewEngine(
		agenda.NewPostgresRepository(pool),
		availabilityService,
		logger,
		agenda.WithNotifier(hub),
		agenda.WithRoomDirectory(usersService),
		agenda.WithMetrics(agendaMetrics),
	)

	scheduler := electro.NewScheduler(
		electro.NewPostgresRepository(pool),
		logger,
		electro.WithNotifier(hub),
		electro.WithMetrics(electroMetrics),
	)

	recibosService := recibos.NewService(
		recibos.NewPostgresRepository(pool),
		logger,
		recibos.WithNotifier(hub),
	)

	r := router.New(&router.Config{
		Logger:              logger,
		Issuer:              issuer,
		AuthHandler:         auth.NewHandler(authService, logger),
		AgendaHandler:       agenda.NewHandler(engine, logger),
		ElectroHandler:      electro.NewHandler(scheduler, logger),
		AvailabilityHandler: availability.NewHandler(availabilityService, logger),
		UsersHandler:        users.NewHandler(usersService, logger),
		PacientesHandler:    pacientes.NewHandler(pacientes.NewPostgresRepository(pool), logger),
		RecibosHandler:      recibos.NewHandler(recibosService, logger),
		Hub:                 hub,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
