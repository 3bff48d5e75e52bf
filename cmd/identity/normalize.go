package identity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const MaxUsernameLength = 64

// NormalizeUsername trims surrounding whitespace. Usernames are case-sensitive.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

func validUsername(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > MaxUsernameLength {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
