// Package jwt issues and validates HS256 access tokens.
package jwt

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
)

const (
	MinSecretLength = 32
	MaxLeeway       = 2 * time.Minute
)

type Config struct {
	Secret    []byte
	Issuer    string
	Audience  string
	AccessTTL time.Duration
	Leeway    time.Duration
}

type Issuer struct {
	config Config
	now    func() time.Time
}

type accessClaims struct {
	PreferredUsername string           `json:"preferred_username"`
	Email             string           `json:"email"`
	GivenName         string           `json:"given_name"`
	FamilyName        string           `json:"family_name"`
	Role              jwt.ClaimStrings `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func NewIssuer(cfg Config) (*Issuer, error) {
	switch {
	case len(cfg.Secret) < MinSecretLength:
		return nil, fmt.Errorf("jwt secret must be at least %d characters", MinSecretLength)
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.Audience == "":
		return nil, errors.New("jwt audience is required")
	case cfg.AccessTTL <= 0:
		return nil, errors.New("invalid access token TTL")
	case cfg.Leeway < 0 || cfg.Leeway > MaxLeeway:
		return nil, errors.New("invalid leeway configuration")
	}
	return &Issuer{config: cfg, now: time.Now}, nil
}

func (i *Issuer) TTL() time.Duration {
	return i.config.AccessTTL
}

func (i *Issuer) Issue(user *domain.User, roles []string) (string, *domain.AccessClaims, error) {
	now := i.now().UTC().Truncate(time.Second)
	claims := accessClaims{
		PreferredUsername: user.Username,
		Email:             user.Email,
		GivenName:         user.FirstName,
		FamilyName:        user.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			Issuer:    i.config.Issuer,
			Audience:  jwt.ClaimStrings{i.config.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if len(roles) > 0 {
		claims.Role = jwt.ClaimStrings(slices.Clone(roles))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.config.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	decoded, err := toDomain(&claims)
	if err != nil {
		return "", nil, err
	}
	return signed, decoded, nil
}

// Validate checks signature, algorithm, issuer, audience and lifetime.
func (i *Issuer) Validate(tokenStr string) (*domain.AccessClaims, error) {
	claims, err := i.parse(tokenStr,
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithAudience(i.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.config.Leeway),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}
	return toDomain(claims)
}

// ValidateIgnoringExpiry checks everything Validate does except the token's
// time window. It is only meant for locating the subject of an expired token
// during refresh.
func (i *Issuer) ValidateIgnoringExpiry(tokenStr string) (*domain.AccessClaims, error) {
	claims, err := i.parse(tokenStr, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.Issuer != i.config.Issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", domain.ErrInvalidAccessToken)
	}
	if !slices.Contains(claims.Audience, i.config.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", domain.ErrInvalidAccessToken)
	}
	return toDomain(claims)
}

func (i *Issuer) parse(tokenStr string, opts ...jwt.ParserOption) (*accessClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return i.config.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAccessToken, err)
	}
	if !token.Valid {
		return nil, domain.ErrInvalidAccessToken
	}
	return claims, nil
}

func toDomain(c *accessClaims) (*domain.AccessClaims, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a valid id", domain.ErrInvalidAccessToken)
	}

	out := &domain.AccessClaims{
		UserID:     userID,
		TokenID:    c.ID,
		Username:   c.PreferredUsername,
		Email:      c.Email,
		GivenName:  c.GivenName,
		FamilyName: c.FamilyName,
		Roles:      []string(c.Role),
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	if out.Roles == nil {
		out.Roles = []string{}
	}
	return out, nil
}
