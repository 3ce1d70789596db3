package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/background"
	"github.com/BradenHooton/roster/internal/cache"
	"github.com/BradenHooton/roster/internal/config"
	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/handlers"
	"github.com/BradenHooton/roster/internal/observability"
	"github.com/BradenHooton/roster/internal/repositories"
	"github.com/BradenHooton/roster/internal/routes"
	"github.com/BradenHooton/roster/internal/services"
	"github.com/BradenHooton/roster/internal/storage"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
	pkglogger "github.com/BradenHooton/roster/pkg/logger"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Pending migrations are applied first unless
DB_AUTO_MIGRATE=false, and the server stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, db, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", slog.Any("error", err))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.Pool, database.MigrateUp); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db.Pool)

	tokenManager, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	if err != nil {
		return err
	}

	auditLogger := pkglogger.NewAuditLogger(logger).WithCounter(metrics)

	counter, sweeper, closeCounter := loginCounter(ctx, cfg.Redis, logger)
	defer func() {
		if err := closeCounter(); err != nil {
			logger.Warn("redis close error", slog.Any("error", err))
		}
	}()
	throttle := services.NewLoginThrottle(counter, services.LoginThrottleConfig{
		MaxFailuresPerEmail: cfg.Auth.MaxFailedLoginsPerEmail,
		MaxFailuresPerIP:    cfg.Auth.MaxFailedLoginsPerIP,
		Window:              cfg.Auth.LoginLockoutWindow,
	}, logger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	emailService, err := services.NewSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	avatarStore, err := storage.NewS3AvatarStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize avatar storage: %w", err)
	}

	// Initialize services
	authService := services.NewAuthService(userRepo, tokenManager, logger, auditLogger, services.AuthServiceConfig{
		Throttle:       throttle,
		Timing:         timingDelay,
		Email:          emailService,
		Avatars:        avatarStore,
		ResetURLBase:   cfg.Email.ResetURLBase,
		MaxAvatarBytes: cfg.Storage.MaxAvatarBytes,
	})
	userService := services.NewUserService(userRepo, avatarStore, logger, auditLogger)

	if cfg.Auth.AdminEmail != "" {
		created, err := userService.EnsureAdmin(ctx, cfg.Auth.AdminName, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
		switch {
		case err != nil:
			logger.Error("failed to ensure admin user", slog.Any("error", err))
		case created:
			logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(cfg.Auth.AdminEmail)))
		}
	}

	// Initialize handlers
	ips := pkghttp.NewIPResolver(cfg.Server.TrustedProxies)
	authHandler := handlers.NewAuthHandler(authService, ips, handlers.AuthHandlerConfig{
		Cookies: auth.CookieConfig{
			Domain:   cfg.Auth.CookieDomain,
			Secure:   cfg.Auth.CookieSecure,
			SameSite: cfg.Auth.CookieSameSite,
		},
		TokenTTL:              cfg.Auth.TokenExpiry,
		UniformForgotResponse: cfg.Auth.ForgotPasswordUniformResponse,
		MaxAvatarBytes:        cfg.Storage.MaxAvatarBytes,
	})
	userHandler := handlers.NewUserHandler(userService)

	router := routes.NewRouter(routes.Dependencies{
		AuthHandler:             authHandler,
		UserHandler:             userHandler,
		Guard:                   auth.NewGuard(tokenManager, userRepo, logger),
		IPs:                     ips,
		Logger:                  logger,
		Metrics:                 metrics,
		Gatherer:                registry,
		Database:                db,
		Env:                     cfg.Server.Env,
		AllowedOrigins:          cfg.Server.AllowedOrigins,
		RequestTimeout:          cfg.Server.RequestTimeout,
		PublicRequestsPerMinute: cfg.Auth.RouteRequestsPerMinute,
		UserRequestsPerMinute:   cfg.Auth.UserRequestsPerMinute,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(router, "roster.http"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(userRepo, sweeper, metrics, logger, cfg.Auth.CleanupInterval)
	go cleanupManager.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		cleanupManager.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	cleanupManager.Stop()
	<-cleanupManager.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// loginCounter prefers Redis so lockouts hold across instances, and falls
// back to in-process counters when Redis is not configured or unreachable.
// The sweeper is nil for Redis, which expires keys itself. The returned close
// func releases the Redis client and is a no-op for in-process counters.
func loginCounter(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (cache.Counter, background.Sweeper, func() error) {
	if cfg.Addr != "" {
		client := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := client.Ping(pingCtx).Err()
		if err == nil {
			logger.Info("login counters backed by redis", slog.String("addr", cfg.Addr))
			return cache.NewRedisCounter(client, "roster:"), nil, client.Close
		}
		logger.Warn("redis unavailable, using in-process login counters", slog.Any("error", err))
		_ = client.Close()
	}

	memory := cache.NewMemoryCounter()
	return memory, memory, func() error { return nil }
}
