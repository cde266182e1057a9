package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Config defines a public type used by otpengine APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Cost is the bcrypt work factor. Zero selects bcrypt.DefaultCost.
	Cost int
}

// Bcrypt defines a public type used by otpengine APIs.
//
// Bcrypt instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Bcrypt struct {
	cost int
}

// NewBcrypt describes the newbcrypt operation and its observable behavior.
//
// NewBcrypt may return an error when input validation, dependency calls, or security checks fail.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}

	return &Bcrypt{cost: cost}, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
func (b *Bcrypt) Hash(password string) (string, error) {
	// Raw string bytes exactly as provided (no Unicode normalization).
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Compare reports whether plain matches the stored bcrypt hash. Malformed
// hashes compare as non-matching.
func (b *Bcrypt) Compare(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
