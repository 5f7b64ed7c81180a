// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Finsight auth HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire the IAM domain, gateway, and HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	"github.com/taibuivan/finsight/internal/api"
	"github.com/taibuivan/finsight/internal/audit"
	"github.com/taibuivan/finsight/internal/gateway"
	"github.com/taibuivan/finsight/internal/iam"
	"github.com/taibuivan/finsight/internal/platform/config"
	"github.com/taibuivan/finsight/internal/platform/constants"
	"github.com/taibuivan/finsight/internal/platform/metrics"
	"github.com/taibuivan/finsight/internal/platform/migration"
	pgstore "github.com/taibuivan/finsight/internal/platform/postgres"
	redisstore "github.com/taibuivan/finsight/internal/platform/redis"
	"github.com/taibuivan/finsight/internal/platform/sec"
	"github.com/taibuivan/finsight/internal/ratelimit"
	"github.com/taibuivan/finsight/internal/rbac"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Finsight] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("rate_limit_fail_mode", cfg.RateLimitFailMode),
	)

	metrics.Init()

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token Service ──────────────────────────────────────────────────
	tokenService, err := sec.NewTokenService(cfg.JWTSecret, constants.AuthIssuer, cfg.AccessTokenTTL)
	must(log, err, "initialize token service")

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	auditStore := audit.NewPostgresStore(pool)
	trail := audit.NewLogger(auditStore, log)

	limiter := ratelimit.New(ratelimit.NewRedisCounterStore(rdb), cfg.RateLimitFailMode, log)

	policy := sec.PasswordPolicy{
		MinLength:      cfg.PasswordMinLength,
		RequireUpper:   cfg.PasswordRequireUpper,
		RequireLower:   cfg.PasswordRequireLower,
		RequireDigit:   cfg.PasswordRequireDigit,
		RequireSpecial: cfg.PasswordRequireSpecial,
	}

	userRepository := iam.NewUserRepository(pool)
	roleRepository := iam.NewRoleRepository(pool)
	tokenRepository := iam.NewTokenRepository(pool)
	iamService := iam.NewService(
		userRepository,
		roleRepository,
		tokenRepository,
		tokenService,
		policy,
		trail,
		cfg.RefreshTokenTTL,
	)

	// Bootstrap administrator. Skipped when no password is configured.
	if cfg.AdminPassword != "" {
		must(log, iamService.BootstrapAdmin(startupCtx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword), "bootstrap admin account")
	}

	// Expired refresh tokens are unusable the moment they expire; this loop
	// only keeps the table from growing without bound.
	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	defer purgeCancel()
	go func() {
		ticker := time.NewTicker(constants.TokenPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				if err := iamService.PurgeExpired(purgeCtx, cfg.TokenPurgeGrace); err != nil {
					log.Error("token_purge_failed", slog.Any("error", err))
				}
			}
		}
	}()

	gate := gateway.New(limiter, iamService, rbac.NewEngine(), trail)

	apiClass := ratelimit.Class{Name: "api", Limit: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}
	loginClass := ratelimit.Class{Name: "login", Limit: cfg.LoginRateLimit, Window: cfg.LoginRateWindow}
	registerClass := ratelimit.Class{Name: "register", Limit: cfg.RegisterRateLimit, Window: cfg.RegisterRateWindow}

	authHandler := iam.NewHandler(iamService, gate, loginClass, registerClass)
	adminHandler := iam.NewAdminHandler(iamService, gate)
	auditHandler := audit.NewHandler(trail)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Admin:     adminHandler,
		Audit:     auditHandler,
	}

	server := api.NewServer(cfg, log, tokenService, trail, gate, apiClass, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
