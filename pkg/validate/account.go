package validate

import (
	"net/mail"
	"regexp"
	"strings"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// IsUsername allows only characters that survive the bank transfer reference format.
func IsUsername(s string) bool {
	return usernameRe.MatchString(s)
}

func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, ".")
}

func IsPassword(s string) bool {
	return len(s) >= 8 && len(s) <= 72
}
