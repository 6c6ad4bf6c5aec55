package services

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 40

	// bcrypt only reads this many bytes of input.
	maxPasswordBytes = 72
)

// PasswordHasher hides the adaptive hash primitive from the verifier.
type PasswordHasher interface {
	// Hash returns a salted digest of password.
	Hash(password string) ([]byte, error)

	// Compare reports whether password matches hash.
	Compare(hash []byte, password string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt. Salt and cost are
// embedded in every digest it produces.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// ValidatePassword enforces the length rules applied when a password is set.
// Verification does not apply them.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes when UTF-8 encoded", maxPasswordBytes)
	}
	return nil
}

func (h *BcryptHasher) Hash(password string) ([]byte, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (h *BcryptHasher) Compare(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
