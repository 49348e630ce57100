// Package redis stores refresh token records in Redis. Each record is a hash
// under "<prefix>:<id>"; a per-user sorted set and a global sorted set, both
// scored by creation time, index the records. Times are unix milliseconds and
// an unrevoked record carries revoked_at "0".
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
)

const DefaultKeyPrefix = "rt"

const notRevoked = "0"

const revokeScript = `
local expires_at = redis.call("HGET", KEYS[1], "expires_at")
if not expires_at then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked_at") ~= "0" then
  return 0
end
if tonumber(expires_at) <= tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1])
return 1
`

const revokeAllScript = `
local ids = redis.call("ZRANGE", KEYS[1], 0, -1)
local token_prefix = ARGV[1]
local revoked = 0
for _, id in ipairs(ids) do
  local key = token_prefix .. id
  if redis.call("HGET", key, "revoked_at") == "0" then
    redis.call("HSET", key, "revoked_at", ARGV[2])
    revoked = revoked + 1
  end
end
return revoked
`

var (
	revokeLua    = redis.NewScript(revokeScript)
	revokeAllLua = redis.NewScript(revokeAllScript)
)

type RefreshTokenRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRefreshTokenRepository(client redis.UniversalClient, prefix string) ports.RefreshTokenRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RefreshTokenRepository{client: client, prefix: prefix}
}

func (r *RefreshTokenRepository) tokenKey(id string) string {
	return r.prefix + ":" + id
}

func (r *RefreshTokenRepository) userKey(userID uuid.UUID) string {
	return r.prefix + ":user:" + userID.String()
}

func (r *RefreshTokenRepository) allKey() string {
	return r.prefix + ":all"
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	revokedAt := notRevoked
	if token.RevokedAt != nil {
		revokedAt = formatMillis(*token.RevokedAt)
	}
	score := float64(token.CreatedAt.UnixMilli())
	id := token.ID.String()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.tokenKey(id),
			"id", id,
			"user_id", token.UserID.String(),
			"token_hash", token.TokenHash,
			"created_at", formatMillis(token.CreatedAt),
			"expires_at", formatMillis(token.ExpiresAt),
			"revoked_at", revokedAt,
		)
		pipe.ZAdd(ctx, r.userKey(token.UserID), redis.Z{Score: score, Member: id})
		pipe.ZAdd(ctx, r.allKey(), redis.Z{Score: score, Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) ActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.RefreshToken, error) {
	tokens, err := r.forUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	active := tokens[:0]
	for _, t := range tokens {
		if t.IsActive(now) {
			active = append(active, t)
		}
	}
	return active, nil
}

func (r *RefreshTokenRepository) RecentlyRevokedForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.RefreshToken, error) {
	tokens, err := r.forUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	revoked := tokens[:0]
	for _, t := range tokens {
		if t.IsRevoked() {
			revoked = append(revoked, t)
		}
	}
	sort.SliceStable(revoked, func(i, j int) bool {
		return revoked[i].RevokedAt.After(*revoked[j].RevokedAt)
	})
	if limit >= 0 && len(revoked) > limit {
		revoked = revoked[:limit]
	}
	return revoked, nil
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	n, err := revokeLua.Run(ctx, r.client, []string{r.tokenKey(id.String())}, formatMillis(at)).Int64()
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if n == 0 {
		return domain.ErrTokenAlreadyRevoked
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	n, err := revokeAllLua.Run(ctx, r.client, []string{r.userKey(userID)}, r.prefix+":", formatMillis(at)).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return n, nil
}

func (r *RefreshTokenRepository) DeleteStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.allKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + formatMillis(cutoff),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list refresh tokens: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.tokenKey(id))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load refresh tokens: %w", err)
	}

	var deleted int64
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			fields := cmds[i].Val()
			if len(fields) == 0 {
				pipe.ZRem(ctx, r.allKey(), id)
				continue
			}
			t, err := parseToken(fields)
			if err != nil {
				slog.WarnContext(ctx, "deleting corrupt refresh token record", "token_id", id, "error", err)
				pipe.Del(ctx, r.tokenKey(id))
				if userID, perr := uuid.Parse(fields["user_id"]); perr == nil {
					pipe.ZRem(ctx, r.userKey(userID), id)
				}
				pipe.ZRem(ctx, r.allKey(), id)
				deleted++
				continue
			}
			if t.IsActive(now) {
				continue
			}
			pipe.Del(ctx, r.tokenKey(id))
			pipe.ZRem(ctx, r.userKey(t.UserID), id)
			pipe.ZRem(ctx, r.allKey(), id)
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale refresh tokens: %w", err)
	}
	return deleted, nil
}

// forUser loads every record indexed for the user, newest first.
func (r *RefreshTokenRepository) forUser(ctx context.Context, userID uuid.UUID) ([]*domain.RefreshToken, error) {
	ids, err := r.client.ZRevRange(ctx, r.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh tokens: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.tokenKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh tokens: %w", err)
	}

	tokens := make([]*domain.RefreshToken, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		t, err := parseToken(fields)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

var errCorruptRecord = errors.New("corrupt refresh token record")

func parseToken(fields map[string]string) (*domain.RefreshToken, error) {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("%w: id", errCorruptRecord)
	}
	userID, err := uuid.Parse(fields["user_id"])
	if err != nil {
		return nil, fmt.Errorf("%w: user_id", errCorruptRecord)
	}
	created, err := parseMillis(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: created_at", errCorruptRecord)
	}
	expires, err := parseMillis(fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: expires_at", errCorruptRecord)
	}

	t := &domain.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: fields["token_hash"],
		CreatedAt: created,
		ExpiresAt: expires,
	}
	if v := fields["revoked_at"]; v != "" && v != notRevoked {
		revoked, err := parseMillis(v)
		if err != nil {
			return nil, fmt.Errorf("%w: revoked_at", errCorruptRecord)
		}
		t.RevokedAt = &revoked
	}
	return t, nil
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
