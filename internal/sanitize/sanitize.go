package sanitize

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxUsernameLen = 32
	MinUsernameLen = 2
	MaxEmailLen    = 254
)

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// Clean normalizes the value to NFKC, drops control characters, collapses
// runs of whitespace into single spaces and caps the result at max runes.
func Clean(value string, max int) string {
	s := norm.NFKC.String(value)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}

	s = spaceRe.ReplaceAllString(b.String(), " ")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > max {
		s = string(runes[:max])
	}
	return s
}

func Username(value string) string {
	return Clean(value, MaxUsernameLen)
}

func Email(value string) string {
	return strings.ToLower(Clean(value, MaxEmailLen))
}

func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func ValidUsername(username string) bool {
	return len([]rune(username)) >= MinUsernameLen && usernameRe.MatchString(username)
}

// ValidatePassword enforces the single password policy used for both
// registration and reset: at least 8 characters with at least one letter,
// one digit and one special character.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	var hasLetter, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune("!@#$%^&*", r):
			hasSpecial = true
		}
	}
	if !hasLetter || !hasDigit || !hasSpecial {
		return errors.New("password must contain at least 1 letter, 1 number, and 1 special character")
	}
	return nil
}
