package server

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt cost used when none is configured.
const DefaultPasswordCost = 10

// Hasher turns a cleartext password into a one-way hash.
type Hasher func(password string) (string, error)

// NewHasher returns a bcrypt Hasher with the given cost. Costs outside the
// bcrypt range fall back to DefaultPasswordCost.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return func(password string) (string, error) {
		return hashPassword(password, cost)
	}
}

// HashPassword will generate a password hash with DefaultPasswordCost
func HashPassword(password string) (string, error) {
	return hashPassword(password, DefaultPasswordCost)
}

func hashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
