package services

import (
	"context"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
)

func registerAlice(t *testing.T, env *testEnv) *domain.User {
	t.Helper()
	user, err := env.userSvc.Register(context.Background(), ports.RegisterInput{
		Username:  "alice",
		Email:     "alice@x.com",
		FirstName: "Alice",
		LastName:  "Liddell",
		Password:  "Password123!",
	})
	require.NoError(t, err)
	return user
}

func loginAlice(t *testing.T, env *testEnv) *domain.TokenPair {
	t.Helper()
	pair, err := env.authSvc.Login(context.Background(), ports.LoginInput{Username: "alice", Password: "Password123!"})
	require.NoError(t, err)
	return pair
}

func expiredAccessToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	past := time.Now().Add(-2 * time.Hour)
	claims := gojwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.NewString(),
		Issuer:    "jessica-auth",
		Audience:  gojwt.ClaimStrings{"jessica-api"},
		IssuedAt:  gojwt.NewNumericDate(past),
		NotBefore: gojwt.NewNumericDate(past),
		ExpiresAt: gojwt.NewNumericDate(past.Add(15 * time.Minute)),
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)

	pair := loginAlice(t, env)

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, 900, pair.ExpiresIn)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.UserInfo.IsAuthenticated)
	assert.Equal(t, "alice", pair.UserInfo.Username)
	assert.Equal(t, "Bearer", pair.UserInfo.AuthenticationType)
	assert.Contains(t, pair.UserInfo.Claims, domain.Claim{Type: "role", Value: "User"})

	claims, err := env.authSvc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, []string{"User"}, claims.Roles)

	assert.Equal(t, 1, env.metrics.login["success"])
	assert.Equal(t, 1, env.tokens.activeCount(user.ID))
}

func TestLogin_UsernameIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	registerAlice(t, env)

	_, err := env.authSvc.Login(context.Background(), ports.LoginInput{Username: "ALICE", Password: "Password123!"})
	assert.NoError(t, err)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)

	bob, err := env.userSvc.Register(context.Background(), ports.RegisterInput{
		Username: "bob", Email: "bob@x.com", FirstName: "Bob", LastName: "Builder", Password: "Password123!",
	})
	require.NoError(t, err)
	require.NoError(t, env.userSvc.Deactivate(context.Background(), bob.ID))

	cases := map[string]ports.LoginInput{
		"wrong password":           {Username: "alice", Password: "nope-nope"},
		"unknown user":             {Username: "carol", Password: "Password123!"},
		"inactive, right password": {Username: "bob", Password: "Password123!"},
		"inactive, wrong password": {Username: "bob", Password: "nope-nope"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			pair, err := env.authSvc.Login(context.Background(), input)
			assert.Nil(t, pair)
			assert.Equal(t, domain.ErrInvalidCredentials, err)
		})
	}
	assert.Equal(t, 0, env.tokens.activeCount(user.ID))
	assert.Equal(t, 4, env.metrics.login["invalid_credentials"])
}

func TestLogin_StoreFailureBecomesInvalidCredentials(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	registerAlice(t, env)
	env.users.errGet = errStoreDown

	_, err := env.authSvc.Login(context.Background(), ports.LoginInput{Username: "alice", Password: "Password123!"})
	assert.Equal(t, domain.ErrInvalidCredentials, err)
	assert.Contains(t, env.logs.String(), "store unavailable")
}

func TestLogin_ValidatesInput(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())

	_, err := env.authSvc.Login(context.Background(), ports.LoginInput{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []domain.FieldError{
		{Field: "username", Message: "is required"},
		{Field: "password", Message: "is required"},
	}, verr.Fields)
}

func TestRefresh_Scenario(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)
	pair := loginAlice(t, env)

	refreshed, err := env.authSvc.Refresh(context.Background(), ports.RefreshInput{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, refreshed.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, refreshed.RefreshToken)

	claims, err := env.authSvc.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = env.authSvc.Refresh(context.Background(), ports.RefreshInput{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	assert.Equal(t, domain.ErrInvalidRefreshToken, err)
	assert.Equal(t, 1, env.metrics.refresh["success"])
	assert.Equal(t, 1, env.metrics.refresh["invalid_refresh_token"])
}

func TestRefresh_AcceptsExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)
	pair := loginAlice(t, env)

	refreshed, err := env.authSvc.Refresh(context.Background(), ports.RefreshInput{
		AccessToken:  expiredAccessToken(t, user.ID),
		RefreshToken: pair.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
}

func TestRefresh_RejectsTamperedAccessToken(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)
	pair := loginAlice(t, env)

	tampered := expiredAccessToken(t, user.ID)
	tampered = tampered[:len(tampered)-4] + "AAAA"

	_, err := env.authSvc.Refresh(context.Background(), ports.RefreshInput{
		AccessToken:  tampered,
		RefreshToken: pair.RefreshToken,
	})
	assert.Equal(t, domain.ErrInvalidAccessToken, err)
	assert.Equal(t, 1, env.tokens.activeCount(user.ID))
}

func TestRefresh_AccessTokenOfAnotherUser(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	registerAlice(t, env)
	pair := loginAlice(t, env)

	_, err := env.authSvc.Refresh(context.Background(), ports.RefreshInput{
		AccessToken:  expiredAccessToken(t, uuid.New()),
		RefreshToken: pair.RefreshToken,
	})
	assert.Equal(t, domain.ErrInvalidRefreshToken, err)
}

func TestRefresh_ValidatesInput(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())

	_, err := env.authSvc.Refresh(context.Background(), ports.RefreshInput{AccessToken: "x"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []domain.FieldError{{Field: "refreshToken", Message: "is required"}}, verr.Fields)
}

func TestLogout_RevokesEverySession(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)
	first := loginAlice(t, env)
	second := loginAlice(t, env)
	require.Equal(t, 2, env.tokens.activeCount(user.ID))

	result := env.authSvc.Logout(context.Background(), user.ID, "alice")
	assert.Equal(t, MessageLoggedOut, result.Message)
	assert.Equal(t, "alice", result.Username)
	assert.Equal(t, 0, env.tokens.activeCount(user.ID))

	for _, pair := range []*domain.TokenPair{first, second} {
		_, err := env.tokenSvc.Rotate(context.Background(), pair.RefreshToken, user.ID)
		assert.Equal(t, domain.ErrInvalidRefreshToken, err)
	}
}

func TestLogout_DegradesOnStoreFailure(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)
	env.tokens.errRevokeAll = errStoreDown

	result := env.authSvc.Logout(context.Background(), user.ID, "alice")
	require.NotNil(t, result)
	assert.Equal(t, MessageLogoutWithWarnings, result.Message)
	assert.Equal(t, "alice", result.Username)
	assert.Equal(t, 1, env.metrics.logout["degraded"])
}

func TestValidateAccessToken(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)
	pair := loginAlice(t, env)

	_, err := env.authSvc.ValidateAccessToken(pair.AccessToken)
	assert.NoError(t, err)

	_, err = env.authSvc.ValidateAccessToken(expiredAccessToken(t, user.ID))
	assert.Equal(t, domain.ErrInvalidAccessToken, err)

	_, err = env.authSvc.ValidateAccessToken("garbage")
	assert.Equal(t, domain.ErrInvalidAccessToken, err)
}

func TestExtractUserIDFromExpiredToken(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	id := uuid.New()

	got, err := env.authSvc.ExtractUserIDFromExpiredToken(expiredAccessToken(t, id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = env.authSvc.ExtractUserIDFromExpiredToken("a.b.c")
	assert.Equal(t, domain.ErrInvalidAccessToken, err)
}

func TestRoles(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)
	require.NoError(t, env.userSvc.AssignRole(context.Background(), user.ID, domain.RoleAdmin))
	pair := loginAlice(t, env)

	assert.Equal(t, []string{"User", "Admin"}, env.authSvc.Roles(pair.AccessToken))
	assert.Equal(t, []string{}, env.authSvc.Roles("garbage"))
}

func TestUserInfo(t *testing.T) {
	env := newTestEnv(t, defaultTokenConfig())
	user := registerAlice(t, env)

	info := env.authSvc.UserInfo(context.Background(), user.ID)
	assert.True(t, info.IsAuthenticated)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, []domain.Claim{
		{Type: "sub", Value: user.ID.String()},
		{Type: "preferred_username", Value: "alice"},
		{Type: "email", Value: "alice@x.com"},
		{Type: "given_name", Value: "Alice"},
		{Type: "family_name", Value: "Liddell"},
		{Type: "role", Value: "User"},
	}, info.Claims)

	info = env.authSvc.UserInfo(context.Background(), uuid.New())
	assert.False(t, info.IsAuthenticated)
	assert.Empty(t, info.Claims)
}
