package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/cvdreamjob/apiserver/config"
)

// PasswordHasher turns a plaintext password into a one-way salted hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, raised to config.MinBcryptCost if lower.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < config.MinBcryptCost {
		cost = config.MinBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Cost() int { return h.cost }

func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
