package app

import (
	"regexp"
	"strings"
	"unicode"
)

var matricPattern = regexp.MustCompile(`^[A-Z]{3}/[0-9]{4}/[0-9]{3}$`)

const minPasswordLength = 6

// NormalizeMatric upper-cases and validates a matric number like CSC/2021/001.
func NormalizeMatric(raw string) (string, error) {
	matric := strings.ToUpper(strings.TrimSpace(raw))
	if !matricPattern.MatchString(matric) {
		return "", NewValidationError("matric number must look like CSC/2021/001")
	}
	return matric, nil
}

// NormalizeInstitutionEmail lower-cases an e-mail and checks its domain.
func NormalizeInstitutionEmail(raw, domain string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", NewValidationError("a valid email address is required")
	}
	if domain != "" && email[at+1:] != strings.ToLower(domain) {
		return "", NewValidationError("email must be a @%s address", domain)
	}
	return email, nil
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return NewValidationError("password must be at least %d characters", minPasswordLength)
	}
	hasDigit := false
	for _, r := range password {
		if unicode.IsDigit(r) {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return NewValidationError("password must contain at least one number")
	}
	return nil
}
