package service

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength rejects trivially weak secrets.
	MinPasswordLength = 8
	// MaxPasswordLength caps input before it reaches the cost-bounded
	// hash function.
	MaxPasswordLength = 128
)

var ErrPasswordLength = fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type bcryptHasher struct {
	cost int
}

// NewPasswordHasher creates a bcrypt-backed hasher with the given cost
// factor (work factor 2^cost).
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

// digest pre-hashes the plaintext before bcrypt. bcrypt only accepts 72
// bytes of input, below the allowed password length; folding the full
// plaintext through SHA-256 first keeps every character significant. The
// digest is base64-encoded so no NUL bytes reach bcrypt.
func digest(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(sum)))
	base64.RawStdEncoding.Encode(out, sum[:])
	return out
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return "", ErrPasswordLength
	}
	hash, err := bcrypt.GenerateFromPassword(digest(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify compares a plaintext password against a stored hash. The bcrypt
// comparison is constant-time with respect to the outcome.
func (h *bcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), digest(password)) == nil
}
