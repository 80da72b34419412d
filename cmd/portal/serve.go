package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-portal/internal/api/http"
	"github.com/spec-kit/ticket-portal/internal/api/http/handlers"
	"github.com/spec-kit/ticket-portal/internal/auth"
	"github.com/spec-kit/ticket-portal/internal/config"
	"github.com/spec-kit/ticket-portal/internal/events"
	"github.com/spec-kit/ticket-portal/internal/observability"
	"github.com/spec-kit/ticket-portal/internal/persistence"
	"github.com/spec-kit/ticket-portal/internal/repository"
	"github.com/spec-kit/ticket-portal/internal/service"
	"github.com/spec-kit/ticket-portal/internal/web"
	"github.com/spec-kit/ticket-portal/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the portal HTTP server: HTML pages under /, JSON API under /api, probes under /health.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, err := persistence.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.RunMigrations {
		if err := persistence.RunMigrations(ctx, db, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		revocations auth.Revocations
		limiter     auth.RateLimiter
	)
	if redis.Enabled() {
		revocations = auth.NewRedisRevocations(redis.Client)
		limiter = auth.NewRedisRateLimiter(redis.Client, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow())
	} else {
		revocations = auth.NewMemoryRevocations()
		limiter = auth.NewMemoryRateLimiter(cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow())
	}
	if cfg.Auth.LoginRateLimit <= 0 {
		limiter = nil
	}

	userRepo := repository.NewUserRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	var forwarder *worker.EventForwarder
	if cfg.Notification.AMQPURL != "" {
		publisher := events.NewAMQPPublisher(cfg.Notification.AMQPURL, cfg.Notification.AMQPQueue)
		forwarder = worker.NewEventForwarder(publisher, cfg.Notification.BufferSize, logger)
		forwarder.Register(dispatcher)
		forwarder.Start(ctx)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL())
	authService := service.NewAuthService(cfg.Auth, userRepo, tokens, revocations, logger)
	ticketService := service.NewTicketService(ticketRepo, dispatcher, logger)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo, revocations, cfg.Auth.CookieName, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	var loginLimiter fiber.Handler
	if limiter != nil {
		loginLimiter = auth.LimitByIP(limiter, "login", logger)
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, db, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Admin:          handlers.NewAdminTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
		LoginLimiter:   loginLimiter,
	})

	portal, err := web.NewPortal(web.Dependencies{
		Auth:           authService,
		Tickets:        ticketService,
		AuthMiddleware: authMiddleware,
		LoginLimiter:   limiter,
		CookieSecure:   cfg.Auth.CookieSecure,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	portal.Register(app)

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("db", string(db.Dialect)))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case <-waitForShutdown(logger):
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	cancel()
	if forwarder != nil {
		forwarder.Wait()
	}
	return nil
}

func waitForShutdown(logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		close(done)
	}()
	return done
}
