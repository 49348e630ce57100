package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Prefix   = "$argon2id$"
	minMemoryKB    = 8 * 1024
	minSaltLength  = 16
	minKeyLength   = 16
	maxMemoryKB    = 1024 * 1024
	maxTime        = 64
	maxParallelism = 64
	maxSaltLength  = 1024
	maxKeyLength   = 1024
	argon2ParamSep = ","
)

type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

type Argon2 struct {
	config Argon2Config
}

func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB || cfg.Memory > maxMemoryKB:
		return nil, errors.New("argon2 memory must be between 8192 and 1048576 KB")
	case cfg.Time < 1 || cfg.Time > maxTime:
		return nil, errors.New("argon2 time must be between 1 and 64")
	case cfg.Parallelism < 1 || cfg.Parallelism > maxParallelism:
		return nil, errors.New("argon2 parallelism must be between 1 and 64")
	case cfg.SaltLength < minSaltLength || cfg.SaltLength > maxSaltLength:
		return nil, errors.New("argon2 salt length must be between 16 and 1024")
	case cfg.KeyLength < minKeyLength || cfg.KeyLength > maxKeyLength:
		return nil, errors.New("argon2 key length must be between 16 and 1024")
	}
	return &Argon2{config: cfg}, nil
}

func (a *Argon2) Hash(plaintext string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2) Verify(plaintext, hash string) bool {
	p, err := parseArgon2(hash)
	if err != nil || !a.withinCost(p) {
		return false
	}
	computed := argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

// withinCost reports whether stored parameters stay within a small multiple of
// the configured ones.
func (a *Argon2) withinCost(p *argon2Params) bool {
	return uint64(p.memory) <= 4*uint64(a.config.Memory) &&
		uint64(p.time) <= 10*uint64(a.config.Time) &&
		uint64(p.parallelism) <= 4*uint64(a.config.Parallelism)
}

type argon2Params struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parseArgon2(hash string) (*argon2Params, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, errors.New("invalid argon2id hash format")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	var p argon2Params
	var seen int
	for _, kv := range strings.Split(parts[3], argon2ParamSep) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.New("invalid argon2 parameter")
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < minMemoryKB || n > maxMemoryKB {
				return nil, errors.New("invalid argon2 memory")
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < 1 || n > maxTime {
				return nil, errors.New("invalid argon2 time")
			}
			p.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < 1 || n > maxParallelism {
				return nil, errors.New("invalid argon2 parallelism")
			}
			p.parallelism = uint8(n)
		default:
			return nil, errors.New("unknown argon2 parameter")
		}
		seen++
	}
	if seen != 3 || p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, errors.New("missing argon2 parameters")
	}

	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) < minSaltLength || len(p.salt) > maxSaltLength {
		return nil, errors.New("invalid argon2 salt")
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) < minKeyLength || len(p.key) > maxKeyLength {
		return nil, errors.New("invalid argon2 key")
	}
	return &p, nil
}
