package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/hashing"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/jwt"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"golang.org/x/crypto/bcrypt"
)

var errStoreDown = errors.New("store unavailable")

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*domain.RefreshToken

	errActive    error
	errRevokeAll error
	errDelete    error

	lastCutoff time.Time
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[uuid.UUID]*domain.RefreshToken{}}
}

func cloneToken(t *domain.RefreshToken) *domain.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		c.RevokedAt = &at
	}
	return &c
}

func (r *fakeRefreshRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.ID] = cloneToken(token)
	return nil
}

func (r *fakeRefreshRepo) ActiveForUser(_ context.Context, userID uuid.UUID, now time.Time) ([]*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errActive != nil {
		return nil, r.errActive
	}
	var out []*domain.RefreshToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.IsActive(now) {
			out = append(out, cloneToken(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRefreshRepo) RecentlyRevokedForUser(_ context.Context, userID uuid.UUID, limit int) ([]*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RefreshToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.IsRevoked() {
			out = append(out, cloneToken(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RevokedAt.After(*out[j].RevokedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRefreshRepo) Revoke(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || !t.IsActive(at) {
		return domain.ErrTokenAlreadyRevoked
	}
	t.RevokedAt = &at
	return nil
}

func (r *fakeRefreshRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errRevokeAll != nil {
		return 0, r.errRevokeAll
	}
	var n int64
	for _, t := range r.tokens {
		if t.UserID == userID && !t.IsRevoked() {
			revokedAt := at
			t.RevokedAt = &revokedAt
			n++
		}
	}
	return n, nil
}

func (r *fakeRefreshRepo) DeleteStale(_ context.Context, cutoff time.Time, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errDelete != nil {
		return 0, r.errDelete
	}
	r.lastCutoff = cutoff
	var n int64
	for id, t := range r.tokens {
		if !t.IsActive(now) && t.CreatedAt.Before(cutoff) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeRefreshRepo) activeCount(userID uuid.UUID) int {
	active, _ := r.ActiveForUser(context.Background(), userID, time.Now().UTC())
	return len(active)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	roles map[uuid.UUID][]string

	errGet error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: map[uuid.UUID]*domain.User{},
		roles: map[uuid.UUID][]string{},
	}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errGet != nil {
		return nil, r.errGet
	}
	if u, ok := r.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) find(match func(*domain.User) bool) *domain.User {
	for _, u := range r.users {
		if match(u) {
			c := *u
			return &c
		}
	}
	return nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errGet != nil {
		return nil, r.errGet
	}
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Username, username) }), nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (r *fakeUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	u, err := r.GetByUsername(ctx, username)
	return u != nil, err
}

func (r *fakeUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	u, err := r.GetByEmail(ctx, email)
	return u != nil, err
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User, roles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	c := *user
	r.users[user.ID] = &c
	r.roles[user.ID] = append([]string(nil), roles...)
	return nil
}

func (r *fakeUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

func (r *fakeUserRepo) RolesFor(_ context.Context, id uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.roles[id]...), nil
}

func (r *fakeUserRepo) AssignRole(_ context.Context, id uuid.UUID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	for _, existing := range r.roles[id] {
		if existing == role {
			return nil
		}
	}
	r.roles[id] = append(r.roles[id], role)
	return nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	login   map[string]int
	refresh map[string]int
	logout  map[string]int
	reuse   int
	swept   int64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{login: map[string]int{}, refresh: map[string]int{}, logout: map[string]int{}}
}

func (m *fakeMetrics) RecordLogin(o string)   { m.mu.Lock(); m.login[o]++; m.mu.Unlock() }
func (m *fakeMetrics) RecordRefresh(o string) { m.mu.Lock(); m.refresh[o]++; m.mu.Unlock() }
func (m *fakeMetrics) RecordRefreshReuse()    { m.mu.Lock(); m.reuse++; m.mu.Unlock() }
func (m *fakeMetrics) RecordLogout(o string)  { m.mu.Lock(); m.logout[o]++; m.mu.Unlock() }
func (m *fakeMetrics) RecordSwept(n int64)    { m.mu.Lock(); m.swept += n; m.mu.Unlock() }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const testJWTSecret = "services-test-secret-0123456789abcdef"

type testEnv struct {
	users   *fakeUserRepo
	tokens  *fakeRefreshRepo
	hasher  *hashing.Hasher
	issuer  *jwt.Issuer
	metrics *fakeMetrics
	logs    *syncBuffer

	tokenSvc *TokenService
	authSvc  *AuthService
	userSvc  *UserService
}

func newTestEnv(t *testing.T, cfg TokenServiceConfig) *testEnv {
	t.Helper()

	hasher, err := hashing.NewHasher(hashing.AlgorithmBcrypt, bcrypt.MinCost, hashing.DefaultArgon2Config())
	require.NoError(t, err)

	issuer, err := jwt.NewIssuer(jwt.Config{
		Secret:    []byte(testJWTSecret),
		Issuer:    "jessica-auth",
		Audience:  "jessica-api",
		AccessTTL: 15 * time.Minute,
		Leeway:    2 * time.Minute,
	})
	require.NoError(t, err)

	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}

	env := &testEnv{
		users:   newFakeUserRepo(),
		tokens:  newFakeRefreshRepo(),
		hasher:  hasher,
		issuer:  issuer,
		metrics: newFakeMetrics(),
		logs:    &syncBuffer{},
	}
	logger := slog.New(slog.NewJSONHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	env.tokenSvc = NewTokenService(env.tokens, env.users, hasher, issuer, cfg, env.metrics, logger)
	env.authSvc = NewAuthService(env.users, env.tokens, hasher, issuer, env.tokenSvc, env.metrics, logger)
	env.userSvc = NewUserService(env.users, hasher, logger).(*UserService)
	return env
}

func defaultTokenConfig() TokenServiceConfig {
	return TokenServiceConfig{ReuseProbeLimit: 5, RevokeAllOnReuse: true}
}
