package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/repository/redis"
	"github.com/vncsmyrnk/jessica-auth/internal/config"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
	"github.com/vncsmyrnk/jessica-auth/internal/core/services"
	"github.com/vncsmyrnk/jessica-auth/internal/logging"
	"github.com/vncsmyrnk/jessica-auth/internal/metrics"
)

// Runs a single refresh token sweep, for use from cron when the server's
// periodic cleanup is disabled.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	defaultRetention, err := config.RefreshRetention()
	if err != nil {
		log.Fatal(err)
	}

	var dbURL, store, redisURL string
	var retention time.Duration

	flag.StringVar(&dbURL, "db-url", config.DatabaseURL(), "Database URL")
	flag.StringVar(&store, "store", envOr("REFRESH_STORE", config.StorePostgres), "Refresh token store (postgres or redis)")
	flag.StringVar(&redisURL, "redis-url", envOr("REDIS_URL", "redis://localhost:6379/0"), "Redis URL")
	flag.DurationVar(&retention, "retention", defaultRetention, "Keep revoked or expired tokens this long (defaults to $REFRESH_RETENTION)")
	flag.Parse()

	logger := logging.New(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "text"))

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var repo ports.RefreshTokenRepository
	switch store {
	case config.StoreRedis:
		client, err := redis.NewClient(ctx, redisURL)
		if err != nil {
			log.Fatal(err)
		}
		defer client.Close()
		repo = redis.NewRefreshTokenRepository(client, redis.DefaultKeyPrefix)
	case config.StorePostgres:
		db, err := postgres.Open(ctx, dbURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		repo = postgres.NewRefreshTokenRepository(db)
	default:
		log.Fatalf("unknown store %q", store)
	}

	cleanup := services.NewCleanupService(repo, services.CleanupConfig{Retention: retention}, metrics.NewRecorder(), logger)

	logger.Info("starting refresh token cleanup", "store", store, "retention", retention.String())

	deleted, err := cleanup.Sweep(ctx)
	if err != nil {
		log.Fatalf("Error sweeping refresh tokens: %v", err)
	}

	logger.Info("refresh token cleanup completed", "deleted", deleted)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
