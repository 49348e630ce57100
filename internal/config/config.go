package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

const (
	DefaultWorkFactor       = 12
	DefaultRefreshRetention = 30 * 24 * time.Hour
)

type Config struct {
	Port               string
	DatabaseURL        string
	AutoMigrate        bool
	RefreshStore       string
	RedisURL           string
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string

	JWT     JWTConfig
	Crypto  CryptoConfig
	Refresh RefreshConfig
}

type JWTConfig struct {
	Secret             string
	Issuer             string
	Audience           string
	AccessTokenMinutes int
	RefreshTokenDays   int
	ClockSkew          time.Duration
}

func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func (c JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

type CryptoConfig struct {
	HashAlgorithm string
	WorkFactor    int
}

type RefreshConfig struct {
	Retention        time.Duration
	CleanupInterval  time.Duration
	ReuseProbeLimit  int
	RevokeAllOnReuse bool
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var p parser
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        DatabaseURL(),
		AutoMigrate:        p.boolVar("AUTO_MIGRATE", true),
		RefreshStore:       strings.ToLower(getEnv("REFRESH_STORE", StorePostgres)),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		JWT: JWTConfig{
			Secret:             os.Getenv("JWT_SECRET"),
			Issuer:             getEnv("JWT_ISSUER", "jessica-auth"),
			Audience:           getEnv("JWT_AUDIENCE", "jessica-api"),
			AccessTokenMinutes: p.intVar("JWT_ACCESS_TOKEN_MINUTES", 15),
			RefreshTokenDays:   p.intVar("JWT_REFRESH_TOKEN_DAYS", 7),
			ClockSkew:          p.durationVar("JWT_CLOCK_SKEW", 2*time.Minute),
		},
		Crypto: CryptoConfig{
			HashAlgorithm: strings.ToLower(getEnv("HASH_ALGORITHM", "bcrypt")),
			WorkFactor:    p.intVar("BCRYPT_WORK_FACTOR", DefaultWorkFactor),
		},
		Refresh: RefreshConfig{
			Retention:        p.durationVar("REFRESH_RETENTION", DefaultRefreshRetention),
			CleanupInterval:  p.durationVar("REFRESH_CLEANUP_INTERVAL", time.Hour),
			ReuseProbeLimit:  p.intVar("REFRESH_REUSE_PROBE_LIMIT", 5),
			RevokeAllOnReuse: p.boolVar("REFRESH_REVOKE_ALL_ON_REUSE", true),
		},
	}

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(key, msg string) {
		errs = append(errs, fmt.Errorf("%s: %s", key, msg))
	}

	if len(c.JWT.Secret) < 32 {
		invalid("JWT_SECRET", "must be at least 32 characters")
	}
	if c.JWT.Issuer == "" {
		invalid("JWT_ISSUER", "must not be empty")
	}
	if c.JWT.Audience == "" {
		invalid("JWT_AUDIENCE", "must not be empty")
	}
	if c.JWT.AccessTokenMinutes <= 0 {
		invalid("JWT_ACCESS_TOKEN_MINUTES", "must be positive")
	}
	if c.JWT.RefreshTokenDays <= 0 {
		invalid("JWT_REFRESH_TOKEN_DAYS", "must be positive")
	}
	if c.JWT.ClockSkew < 0 || c.JWT.ClockSkew > 2*time.Minute {
		invalid("JWT_CLOCK_SKEW", "must be between 0 and 2m")
	}
	switch c.Crypto.HashAlgorithm {
	case "bcrypt", "argon2id":
	default:
		invalid("HASH_ALGORITHM", "must be bcrypt or argon2id")
	}
	if c.Crypto.WorkFactor < 4 || c.Crypto.WorkFactor > 31 {
		invalid("BCRYPT_WORK_FACTOR", "must be between 4 and 31")
	}
	switch c.RefreshStore {
	case StorePostgres:
	case StoreRedis:
		if c.RedisURL == "" {
			invalid("REDIS_URL", "required when REFRESH_STORE=redis")
		}
	default:
		invalid("REFRESH_STORE", "must be postgres or redis")
	}
	if c.DatabaseURL == "" {
		invalid("DATABASE_URL", "must not be empty")
	}
	if c.Refresh.Retention < 0 {
		invalid("REFRESH_RETENTION", "must not be negative")
	}
	if c.Refresh.CleanupInterval < 0 {
		invalid("REFRESH_CLEANUP_INTERVAL", "must not be negative")
	}
	if c.Refresh.ReuseProbeLimit < 0 {
		invalid("REFRESH_REUSE_PROBE_LIMIT", "must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		invalid("LOG_FORMAT", "must be json or text")
	}

	return errors.Join(errs...)
}

// RefreshRetention reads REFRESH_RETENTION alone, for tools that do not need
// the full server configuration.
func RefreshRetention() (time.Duration, error) {
	var p parser
	d := p.durationVar("REFRESH_RETENTION", DefaultRefreshRetention)
	if err := errors.Join(p.errs...); err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("REFRESH_RETENTION: must not be negative")
	}
	return d, nil
}

// WorkFactor reads BCRYPT_WORK_FACTOR alone.
func WorkFactor() (int, error) {
	var p parser
	n := p.intVar("BCRYPT_WORK_FACTOR", DefaultWorkFactor)
	if err := errors.Join(p.errs...); err != nil {
		return 0, err
	}
	if n < 4 || n > 31 {
		return 0, errors.New("BCRYPT_WORK_FACTOR: must be between 4 and 31")
	}
	return n, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// DatabaseURL returns DATABASE_URL, or a URL assembled from the POSTGRES_*
// variables when only those are set.
func DatabaseURL() string {
	return getEnv("DATABASE_URL", dbConnString())
}

func dbConnString() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(host, getEnv("POSTGRES_PORT", "5432")),
		Path:     "/" + os.Getenv("POSTGRES_DB"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type parser struct {
	errs []error
}

func (p *parser) intVar(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) boolVar(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (p *parser) durationVar(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
