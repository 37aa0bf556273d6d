package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxPasswordBytes  = 72 // bcrypt input limit
	minNameLength     = 2
	maxNameLength     = 255
	maxEmailLength    = 255
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateEmail expects an already normalized address and rejects display
// names ("Alice <a@x>") that net/mail would otherwise accept.
func validateEmail(email string) error {
	if email == "" {
		return Validationf("Email is required")
	}
	if len(email) > maxEmailLength {
		return Validationf("Email must be at most %d characters", maxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".") {
		return Validationf("Email must be a valid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return Validationf("Password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return Validationf("Password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minNameLength {
		return Validationf("Name must be at least %d characters", minNameLength)
	}
	if n > maxNameLength {
		return Validationf("Name must be at most %d characters", maxNameLength)
	}
	return nil
}

func trimName(name string) string {
	return strings.TrimSpace(name)
}
