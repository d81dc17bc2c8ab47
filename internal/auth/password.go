package auth

import (
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// MinPasswordLength is enforced on register, change and reset.
const MinPasswordLength = 8

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// ValidatePassword rejects passwords that are too short to hash.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.NewValidationError("password is too short", map[string]any{"min_length": MinPasswordLength})
	}
	if len(password) > 72 {
		return apperrors.NewValidationError("password is too long", map[string]any{"max_length": 72})
	}
	return nil
}
