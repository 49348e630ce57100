package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vncsmyrnk/jessica-auth/internal/adapters/handler/http"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/hashing"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/jwt"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/repository/redis"
	"github.com/vncsmyrnk/jessica-auth/internal/config"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
	"github.com/vncsmyrnk/jessica-auth/internal/core/services"
	"github.com/vncsmyrnk/jessica-auth/internal/logging"
	"github.com/vncsmyrnk/jessica-auth/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := postgres.ApplyMigrations(ctx, db); err != nil {
			fatal(logger, "failed to apply migrations", err)
		}
		logger.Info("migrations applied")
	}

	refreshRepo, closeStore, err := refreshRepository(ctx, cfg, db)
	if err != nil {
		fatal(logger, "failed to open refresh token store", err)
	}
	defer closeStore()

	hasher, err := hashing.NewHasher(cfg.Crypto.HashAlgorithm, cfg.Crypto.WorkFactor, hashing.DefaultArgon2Config())
	if err != nil {
		fatal(logger, "failed to configure password hashing", err)
	}

	issuer, err := jwt.NewIssuer(jwt.Config{
		Secret:    []byte(cfg.JWT.Secret),
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		AccessTTL: cfg.JWT.AccessTTL(),
		Leeway:    cfg.JWT.ClockSkew,
	})
	if err != nil {
		fatal(logger, "failed to configure token issuer", err)
	}

	recorder := metrics.NewRecorder()
	userRepo := postgres.NewUserRepository(db)

	tokenService := services.NewTokenService(refreshRepo, userRepo, hasher, issuer, services.TokenServiceConfig{
		RefreshTTL:       cfg.JWT.RefreshTTL(),
		ReuseProbeLimit:  cfg.Refresh.ReuseProbeLimit,
		RevokeAllOnReuse: cfg.Refresh.RevokeAllOnReuse,
	}, recorder, logger)
	authService := services.NewAuthService(userRepo, refreshRepo, hasher, issuer, tokenService, recorder, logger)
	userService := services.NewUserService(userRepo, hasher, logger)

	cleanup := services.NewCleanupService(refreshRepo, services.CleanupConfig{
		Retention: cfg.Refresh.Retention,
		Interval:  cfg.Refresh.CleanupInterval,
	}, recorder, logger)
	go cleanup.Start(ctx)

	handler := http.NewHandler(
		authService,
		http.NewAuthHandler(authService, userService),
		http.NewUserHandler(userService),
		cfg.CORSAllowedOrigins,
	)
	server := &stdhttp.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("auth service listening", "addr", server.Addr, "refresh_store", cfg.RefreshStore, "hash_algorithm", hasher.Algorithm())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			fatal(logger, "server stopped", err)
		}
	}()

	<-ctx.Done()
	logger.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fatal(logger, "shutdown failed", err)
	}
}

func refreshRepository(ctx context.Context, cfg *config.Config, db *sql.DB) (ports.RefreshTokenRepository, func(), error) {
	if cfg.RefreshStore != config.StoreRedis {
		return postgres.NewRefreshTokenRepository(db), func() {}, nil
	}

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewRefreshTokenRepository(client, redis.DefaultKeyPrefix), func() { client.Close() }, nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
