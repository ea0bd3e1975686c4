package auth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/courseloop/authgate/pkg/apperrors"
)

var (
	// Exactly one @ with a non-empty local part and a dot somewhere in the
	// domain. Deliberately not full RFC 5322.
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// Documented as a floor, not a security target.
	minPasswordLength = 6
)

// IsValidEmail checks if an email address is valid
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) > 254 {
		return false
	}
	if strings.Count(email, "@") != 1 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidPassword checks if a password meets the minimum strength floor
func IsValidPassword(password string) bool {
	return len(password) >= minPasswordLength
}

// SanitizeEmail normalizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// ValidateRegistration runs the registration checks in order: required-field
// presence first, then email shape, then password strength. The first
// failure is returned; errors are not collected.
func ValidateRegistration(req *RegisterRequest) error {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fmt.Errorf("validate registration: %w", apperrors.ErrMissingFields)
	}
	if !IsValidEmail(req.Email) {
		return fmt.Errorf("validate registration: %w", apperrors.ErrInvalidEmail)
	}
	if !IsValidPassword(req.Password) {
		return fmt.Errorf("validate registration: %w", apperrors.ErrWeakPassword)
	}
	return nil
}

// ValidateLogin checks the login request shape before any lookup. Login only
// requires presence plus email shape; the password floor is enforced at
// registration time.
func ValidateLogin(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return fmt.Errorf("validate login: %w", apperrors.ErrMissingFields)
	}
	if !IsValidEmail(email) {
		return fmt.Errorf("validate login: %w", apperrors.ErrInvalidEmail)
	}
	return nil
}
