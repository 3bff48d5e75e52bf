package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var trivialPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"qwertyui":    {},
	"qwerty123":   {},
	"iloveyou":    {},
}

// Validate checks password against the policy.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	case c.Policy.RejectVeryWeak && looksVeryWeak(password):
		return ErrWeakPassword
	}
	return nil
}

// looksVeryWeak catches a repeated single character, short digit-only PINs and a
// handful of well-known passwords. It is not a strength estimator.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}
	if _, ok := trivialPasswords[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	sameChar, digitsOnly := true, true
	for _, r := range s {
		if r != first {
			sameChar = false
		}
		if !unicode.IsDigit(r) {
			digitsOnly = false
		}
	}
	return sameChar || (digitsOnly && utf8.RuneCountInString(s) < 12)
}
