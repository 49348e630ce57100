// Package hashing implements the credential verifier: adaptive, self-describing
// password hashes. New hashes use the configured algorithm; verification
// accepts any supported algorithm so stored hashes survive a switch.
package hashing

import (
	"fmt"
	"strings"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

type Hasher struct {
	algorithm string
	bcrypt    *Bcrypt
	argon2    *Argon2
}

func NewHasher(algorithm string, bcryptCost int, argon2Cfg Argon2Config) (*Hasher, error) {
	b, err := NewBcrypt(bcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(argon2Cfg)
	if err != nil {
		return nil, err
	}

	switch algorithm {
	case "", AlgorithmBcrypt:
		algorithm = AlgorithmBcrypt
	case AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}

	return &Hasher{algorithm: algorithm, bcrypt: b, argon2: a}, nil
}

func (h *Hasher) Algorithm() string {
	return h.algorithm
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2.Hash(plaintext)
	}
	return h.bcrypt.Hash(plaintext)
}

func (h *Hasher) Verify(plaintext, hash string) bool {
	switch {
	case strings.HasPrefix(hash, argon2Prefix):
		return h.argon2.Verify(plaintext, hash)
	case isBcryptHash(hash):
		return h.bcrypt.Verify(plaintext, hash)
	default:
		return false
	}
}
