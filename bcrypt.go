package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt cost used when none is configured
const DefaultPasswordCost = 12

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, passwordHashCost())
}

// HashPasswordWithCost hashes password using the given bcrypt cost.
// Costs outside bcrypt's range fall back to DefaultPasswordCost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", internalError(err, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		// malformed or truncated stored hash, same answer for the caller
		return ErrInvalidCredentials.Wrap(err)
	}
	return nil
}
