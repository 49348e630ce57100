package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	// ActiveForUser returns tokens that are neither revoked nor expired at now,
	// newest first.
	ActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.RefreshToken, error)
	RecentlyRevokedForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.RefreshToken, error)
	// Revoke must be a conditional update: it succeeds only for a token that is
	// still active and returns domain.ErrTokenAlreadyRevoked otherwise.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	// DeleteStale removes revoked or expired tokens created before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify returns false for malformed hashes instead of an error.
	Verify(plaintext, hash string) bool
}

type AccessTokenIssuer interface {
	Issue(user *domain.User, roles []string) (string, *domain.AccessClaims, error)
	Validate(token string) (*domain.AccessClaims, error)
	ValidateIgnoringExpiry(token string) (*domain.AccessClaims, error)
	TTL() time.Duration
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshInput struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type TokenService interface {
	IssueRefreshToken(ctx context.Context, userID uuid.UUID) (string, error)
	IssuePair(ctx context.Context, user *domain.User) (*domain.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string, userID uuid.UUID) (*domain.TokenPair, error)
}

type AuthService interface {
	Login(ctx context.Context, input LoginInput) (*domain.TokenPair, error)
	Refresh(ctx context.Context, input RefreshInput) (*domain.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID, username string) *domain.LogoutResult
	UserInfo(ctx context.Context, userID uuid.UUID) *domain.UserInfo
	ValidateAccessToken(token string) (*domain.AccessClaims, error)
	ExtractUserIDFromExpiredToken(token string) (uuid.UUID, error)
	Roles(token string) []string
}

type TokenSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// AuthMetrics receives outcome counters from the services. Outcome labels are
// short snake_case strings such as "success" or "invalid_credentials".
type AuthMetrics interface {
	RecordLogin(outcome string)
	RecordRefresh(outcome string)
	RecordRefreshReuse()
	RecordLogout(outcome string)
	RecordSwept(count int64)
}
