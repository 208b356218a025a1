package entity

import (
	"errors"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,38}[a-z0-9]$`)

var ErrInvalidUsername = errors.New("username must be 3-40 chars of lowercase letters, digits or hyphens")

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// ValidateUsername checks an already normalized username.
func ValidateUsername(v string) error {
	if !usernamePattern.MatchString(v) || strings.Contains(v, "--") {
		return ErrInvalidUsername
	}
	return nil
}

// ValidKind reports whether k is a known profile kind.
func ValidKind(k string) bool {
	switch k {
	case KindDesigner, KindBrand, KindReader:
		return true
	}
	return false
}
