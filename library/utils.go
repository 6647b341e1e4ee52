// Package library contains helper functions
package library

import (
	"strings"
	"unicode/utf8"

	"github.com/Laisky/errors/v2"
)

const bearerPrefix = "bearer "

// StripBearerPrefix removes every leading `Bearer ` prefix (case-insensitive)
// from an Authorization header value and trims surrounding spaces.
func StripBearerPrefix(header string) string {
	token := strings.TrimSpace(header)
	for len(token) >= len(bearerPrefix) &&
		strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = strings.TrimSpace(token[len(bearerPrefix):])
	}

	return token
}

// ValidateInputLength returns an error when any input exceeds limit runes.
func ValidateInputLength(limit int, inputs ...string) error {
	for _, input := range inputs {
		if utf8.RuneCountInString(input) > limit {
			return errors.Errorf("input too long, limit %d characters", limit)
		}
	}

	return nil
}

// Truncate truncate string to n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}

	var count int
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}

	return s
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
