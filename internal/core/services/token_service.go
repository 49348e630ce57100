package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
)

const refreshSecretBytes = 64

type TokenServiceConfig struct {
	RefreshTTL time.Duration
	// ReuseProbeLimit is how many recently revoked tokens are checked when a
	// presented secret matches no active token. Zero disables the probe.
	ReuseProbeLimit  int
	RevokeAllOnReuse bool
}

type TokenService struct {
	refreshRepo ports.RefreshTokenRepository
	userRepo    ports.UserRepository
	hasher      ports.PasswordHasher
	issuer      ports.AccessTokenIssuer
	config      TokenServiceConfig
	metrics     ports.AuthMetrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewTokenService(
	refreshRepo ports.RefreshTokenRepository,
	userRepo ports.UserRepository,
	hasher ports.PasswordHasher,
	issuer ports.AccessTokenIssuer,
	config TokenServiceConfig,
	metrics ports.AuthMetrics,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		refreshRepo: refreshRepo,
		userRepo:    userRepo,
		hasher:      hasher,
		issuer:      issuer,
		config:      config,
		metrics:     metricsOrNoop(metrics),
		logger:      loggerOrDefault(logger),
		now:         time.Now,
	}
}

// IssueRefreshToken stores a new refresh token record and returns the raw
// secret. Only a hash of the secret is persisted.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	secret, err := generateRefreshSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	hash, err := s.hasher.Hash(digestRefreshSecret(secret))
	if err != nil {
		return "", fmt.Errorf("failed to hash refresh token: %w", err)
	}

	now := s.now().UTC()
	token := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.RefreshTTL),
	}
	if err := s.refreshRepo.Create(ctx, token); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return secret, nil
}

func (s *TokenService) IssuePair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	roles, err := s.userRepo.RolesFor(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	accessToken, _, err := s.issuer.Issue(user, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.IssueRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		TokenType:    domain.TokenTypeBearer,
		ExpiresIn:    int(s.issuer.TTL().Seconds()),
		RefreshToken: refreshToken,
		UserInfo: domain.UserInfo{
			IsAuthenticated:    true,
			Username:           user.Username,
			AuthenticationType: domain.TokenTypeBearer,
			Claims:             domain.BuildClaims(user, roles),
		},
	}, nil
}

// Rotate exchanges a refresh secret for a new token pair. The matching record
// is revoked before anything is issued, so a secret yields at most one pair.
// Every failure is reported as domain.ErrInvalidRefreshToken.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string, userID uuid.UUID) (*domain.TokenPair, error) {
	logger := s.logger.With("user_id", userID)
	now := s.now().UTC()

	active, err := s.refreshRepo.ActiveForUser(ctx, userID, now)
	if err != nil {
		logger.Error("failed to load refresh tokens", "error", err)
		return nil, domain.ErrInvalidRefreshToken
	}
	if len(active) == 0 {
		logger.Warn("refresh rejected: no active sessions")
		return nil, domain.ErrInvalidRefreshToken
	}

	digest := digestRefreshSecret(refreshToken)

	var matched *domain.RefreshToken
	for _, t := range active {
		if s.hasher.Verify(digest, t.TokenHash) {
			matched = t
			break
		}
	}
	if matched == nil {
		s.handleMismatch(ctx, logger, userID, digest)
		return nil, domain.ErrInvalidRefreshToken
	}

	if err := s.refreshRepo.Revoke(ctx, matched.ID, now); err != nil {
		if errors.Is(err, domain.ErrTokenAlreadyRevoked) {
			logger.Warn("refresh token already rotated by a concurrent request", "token_id", matched.ID)
		} else {
			logger.Error("failed to revoke refresh token", "token_id", matched.ID, "error", err)
		}
		return nil, domain.ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		logger.Error("failed to load user during refresh", "error", err)
		return nil, domain.ErrInvalidRefreshToken
	}
	if user == nil || !user.IsActive {
		logger.Warn("refresh rejected: user missing or inactive")
		return nil, domain.ErrInvalidRefreshToken
	}

	pair, err := s.IssuePair(ctx, user)
	if err != nil {
		logger.Error("failed to issue token pair during refresh", "error", err)
		return nil, domain.ErrInvalidRefreshToken
	}

	logger.Info("refresh token rotated", "revoked_token_id", matched.ID)
	return pair, nil
}

// handleMismatch checks whether the secret belongs to an already rotated token.
// A hit means a stolen or replayed secret.
func (s *TokenService) handleMismatch(ctx context.Context, logger *slog.Logger, userID uuid.UUID, digest string) {
	if s.config.ReuseProbeLimit <= 0 {
		logger.Warn("refresh token mismatch, possible token theft")
		return
	}

	revoked, err := s.refreshRepo.RecentlyRevokedForUser(ctx, userID, s.config.ReuseProbeLimit)
	if err != nil {
		logger.Warn("refresh token mismatch, possible token theft", "probe_error", err)
		return
	}

	for _, t := range revoked {
		if !s.hasher.Verify(digest, t.TokenHash) {
			continue
		}

		s.metrics.RecordRefreshReuse()
		logger.Error("revoked refresh token reused", "token_id", t.ID)

		if s.config.RevokeAllOnReuse {
			n, err := s.refreshRepo.RevokeAllForUser(ctx, userID, s.now().UTC())
			if err != nil {
				logger.Error("failed to revoke sessions after refresh token reuse", "error", err)
				return
			}
			logger.Warn("revoked all sessions after refresh token reuse", "revoked", n)
		}
		return
	}

	logger.Warn("refresh token mismatch, possible token theft")
}

func generateRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// digestRefreshSecret reduces the secret to a fixed length below bcrypt's
// 72 byte input limit.
func digestRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}
