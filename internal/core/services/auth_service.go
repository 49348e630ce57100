package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
)

const (
	MessageLoggedOut          = "Logged out successfully. Please discard your access token."
	MessageLogoutWithWarnings = "Logout completed with warnings."
)

const (
	outcomeSuccess             = "success"
	outcomeInvalidCredentials  = "invalid_credentials"
	outcomeInvalidInput        = "invalid_input"
	outcomeInvalidAccessToken  = "invalid_access_token"
	outcomeInvalidRefreshToken = "invalid_refresh_token"
	outcomeDegraded            = "degraded"
)

type AuthService struct {
	userRepo    ports.UserRepository
	refreshRepo ports.RefreshTokenRepository
	hasher      ports.PasswordHasher
	issuer      ports.AccessTokenIssuer
	tokens      ports.TokenService
	metrics     ports.AuthMetrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewAuthService(
	userRepo ports.UserRepository,
	refreshRepo ports.RefreshTokenRepository,
	hasher ports.PasswordHasher,
	issuer ports.AccessTokenIssuer,
	tokens ports.TokenService,
	metrics ports.AuthMetrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		hasher:      hasher,
		issuer:      issuer,
		tokens:      tokens,
		metrics:     metricsOrNoop(metrics),
		logger:      loggerOrDefault(logger),
		now:         time.Now,
	}
}

// Login returns a token pair for an active user with a matching password.
// Unknown user, inactive user, wrong password and internal failures all
// produce domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, input ports.LoginInput) (*domain.TokenPair, error) {
	if err := validateInput(input); err != nil {
		s.metrics.RecordLogin(outcomeInvalidInput)
		return nil, err
	}

	logger := s.logger.With("username", input.Username)

	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		logger.Error("failed to look up user during login", "error", err)
		s.metrics.RecordLogin(outcomeInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}
	if user == nil || !user.IsActive {
		logger.Warn("login failed: unknown or inactive user")
		s.metrics.RecordLogin(outcomeInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		logger.Warn("login failed: invalid password", "user_id", user.ID)
		s.metrics.RecordLogin(outcomeInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		logger.Error("failed to issue token pair during login", "user_id", user.ID, "error", err)
		s.metrics.RecordLogin(outcomeInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	logger.Info("user logged in", "user_id", user.ID)
	s.metrics.RecordLogin(outcomeSuccess)
	return pair, nil
}

func (s *AuthService) Refresh(ctx context.Context, input ports.RefreshInput) (*domain.TokenPair, error) {
	if err := validateInput(input); err != nil {
		s.metrics.RecordRefresh(outcomeInvalidInput)
		return nil, err
	}

	userID, err := s.ExtractUserIDFromExpiredToken(input.AccessToken)
	if err != nil {
		s.logger.Warn("refresh rejected: invalid access token", "error", err)
		s.metrics.RecordRefresh(outcomeInvalidAccessToken)
		return nil, domain.ErrInvalidAccessToken
	}

	pair, err := s.tokens.Rotate(ctx, input.RefreshToken, userID)
	if err != nil {
		s.metrics.RecordRefresh(outcomeInvalidRefreshToken)
		return nil, domain.ErrInvalidRefreshToken
	}

	s.metrics.RecordRefresh(outcomeSuccess)
	return pair, nil
}

// Logout revokes every refresh token of the user. It never fails; a store
// error only changes the message.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, username string) *domain.LogoutResult {
	logger := s.logger.With("user_id", userID)

	n, err := s.refreshRepo.RevokeAllForUser(ctx, userID, s.now().UTC())
	if err != nil {
		logger.Error("failed to revoke refresh tokens during logout", "error", err)
		s.metrics.RecordLogout(outcomeDegraded)
		return &domain.LogoutResult{Message: MessageLogoutWithWarnings, Username: username}
	}

	logger.Info("user logged out", "revoked", n)
	s.metrics.RecordLogout(outcomeSuccess)
	return &domain.LogoutResult{Message: MessageLoggedOut, Username: username}
}

func (s *AuthService) UserInfo(ctx context.Context, userID uuid.UUID) *domain.UserInfo {
	anonymous := &domain.UserInfo{Claims: []domain.Claim{}}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load user info", "user_id", userID, "error", err)
		return anonymous
	}
	if user == nil || !user.IsActive {
		return anonymous
	}

	roles, err := s.userRepo.RolesFor(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load roles for user info", "user_id", userID, "error", err)
		return anonymous
	}

	return &domain.UserInfo{
		IsAuthenticated:    true,
		Username:           user.Username,
		AuthenticationType: domain.TokenTypeBearer,
		Claims:             domain.BuildClaims(user, roles),
	}
}

func (s *AuthService) ValidateAccessToken(token string) (*domain.AccessClaims, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return nil, domain.ErrInvalidAccessToken
	}
	return claims, nil
}

// ExtractUserIDFromExpiredToken identifies the subject of a token whose
// signature, issuer and audience are valid, whatever its expiry.
func (s *AuthService) ExtractUserIDFromExpiredToken(token string) (uuid.UUID, error) {
	claims, err := s.issuer.ValidateIgnoringExpiry(token)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidAccessToken
	}
	if claims.UserID == uuid.Nil {
		return uuid.Nil, domain.ErrInvalidAccessToken
	}
	return claims.UserID, nil
}

func (s *AuthService) Roles(token string) []string {
	claims, err := s.ValidateAccessToken(token)
	if err != nil {
		return []string{}
	}
	return claims.Roles
}
