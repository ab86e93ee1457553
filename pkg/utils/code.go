package utils

import (
	"regexp"
	"strings"
)

const CodeLength = 5

var codeRegex = regexp.MustCompile(`^[0-9]{5}$`)

// ValidateCode checks that code is exactly five ASCII digits.
func ValidateCode(code string) error {
	if !codeRegex.MatchString(code) {
		return &ValidationError{Field: "code", Message: "Code must be exactly 5 digits"}
	}
	return nil
}

// NormalizeCode trims surrounding whitespace. Codes are otherwise compared verbatim.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// ValidateName checks the display name given at registration.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "Name is required"}
	}
	if len(name) > 64 {
		return &ValidationError{Field: "name", Message: "Name must be at most 64 characters"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
