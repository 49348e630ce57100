package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
)

type CleanupConfig struct {
	// Retention is how long an inactive token is kept before deletion.
	Retention time.Duration
	Interval  time.Duration
}

type CleanupService struct {
	repo    ports.RefreshTokenRepository
	config  CleanupConfig
	metrics ports.AuthMetrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewCleanupService(repo ports.RefreshTokenRepository, config CleanupConfig, metrics ports.AuthMetrics, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		repo:    repo,
		config:  config,
		metrics: metricsOrNoop(metrics),
		logger:  loggerOrDefault(logger),
		now:     time.Now,
	}
}

// Sweep deletes revoked or expired refresh tokens created before now minus
// the retention period.
func (s *CleanupService) Sweep(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.config.Retention)

	n, err := s.repo.DeleteStale(ctx, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale refresh tokens: %w", err)
	}

	s.metrics.RecordSwept(n)
	s.logger.Info("stale refresh tokens swept", "deleted", n, "cutoff", cutoff)
	return n, nil
}

// Start runs Sweep every Interval until ctx is done. A non-positive interval
// disables the loop.
func (s *CleanupService) Start(ctx context.Context) {
	if s.config.Interval <= 0 {
		s.logger.Info("refresh token cleanup disabled")
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info("refresh token cleanup started", "interval", s.config.Interval, "retention", s.config.Retention)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh token cleanup stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("refresh token cleanup failed", "error", err)
			}
		}
	}
}
