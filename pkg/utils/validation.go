package utils

import (
	"net/mail"
	"strings"
)

// MinPasswordLength is the shortest password accepted at registration and reset.
const MinPasswordLength = 6

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NormalizeEmail trims and lowercases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.IndexByte(email, '@')+1:], ".") {
		return &ValidationError{Field: "email", Message: "Please enter a valid email address."}
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters."}
	}
	return nil
}

// ValidatePasswordConfirmation checks a new password and its confirmation.
func ValidatePasswordConfirmation(password, confirm string) error {
	if password != confirm {
		return &ValidationError{Field: "confirm_password", Message: "Passwords do not match."}
	}
	return ValidatePassword(password)
}
