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

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fitmeta/fitmeta-api/internal/config"
	"github.com/fitmeta/fitmeta-api/internal/crypto"
	"github.com/fitmeta/fitmeta-api/internal/email"
	"github.com/fitmeta/fitmeta-api/internal/handler"
	"github.com/fitmeta/fitmeta-api/internal/logging"
	"github.com/fitmeta/fitmeta-api/internal/metrics"
	"github.com/fitmeta/fitmeta-api/internal/middleware"
	"github.com/fitmeta/fitmeta-api/internal/repository"
	"github.com/fitmeta/fitmeta-api/internal/service"
)

const serviceName = "fitmeta-api"

var autoMigrate bool

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger := logging.Setup(serviceName, cfg.LogFormat, slog.LevelInfo, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	tokens, err := crypto.NewTokenIssuer(crypto.TokenConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Expiry:   cfg.JWTExpiry,
	})
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "create token issuer").Wrap(err)
	}

	limiter, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	routes := handler.RouterConfig{
		Tokens:  tokens,
		Limiter: limiter,
		Metrics: m,
		Logger:  logger,
	}

	// Auth routes are only mounted when the database is reachable.
	db, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Warn("database connection failed, auth routes disabled", "driver", cfg.DatabaseDriver, "error", err)
	} else {
		defer db.Close()

		if autoMigrate {
			if err := db.Migrate(ctx); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}
		}

		authService, err := newAuthService(cfg, db.Users, tokens, logger)
		if err != nil {
			return oops.Code("STARTUP_FAILED").With("operation", "create auth service").Wrap(err)
		}
		routes.Auth = handler.NewAuthHandler(authService, m, logger)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env, "database", cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return oops.Code("SERVER_FAILED").Wrap(err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SERVER_FAILED").With("operation", "shutdown").Wrap(err)
	}

	logger.Info("server stopped")
	return nil
}

func newAuthService(cfg config.Config, users service.UserRepository, tokens *crypto.TokenIssuer, logger *slog.Logger) (*service.AuthService, error) {
	resets, err := service.NewResetTokenStore(users, cfg.ResetTokenTTL)
	if err != nil {
		return nil, err
	}

	return service.NewAuthService(service.Deps{
		Users:        users,
		Hasher:       crypto.NewArgon2idHasher(crypto.DefaultHashParams()),
		Tokens:       tokens,
		Resets:       resets,
		Mailer:       newMailer(cfg, logger),
		ResetURLBase: cfg.ResetURLBase,
		Logger:       logger,
	})
}

func newMailer(cfg config.Config, logger *slog.Logger) email.Sender {
	if cfg.SendGridAPIKey == "" {
		logger.Warn("SENDGRID_API_KEY not set, reset emails will be logged instead of sent")
		return email.NewLogSender(logger)
	}
	return email.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName)
}

// newLimiter prefers Redis so limits hold across instances, and falls back to
// an in-process limiter when Redis is not configured or not reachable.
func newLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (middleware.Limiter, func()) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			// A window of burst/rps admits the same long-run rate as the token bucket.
			window := time.Duration(float64(cfg.RateLimitBurst) / cfg.RateLimitRPS * float64(time.Second))
			return middleware.NewRedisLimiter(client, cfg.RateLimitBurst, window), func() { client.Close() }
		}
		logger.Warn("redis unreachable, using in-memory rate limiter", "addr", cfg.RedisAddr, "error", err)
		client.Close()
	}

	limiter := middleware.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	return limiter, limiter.Close
}
