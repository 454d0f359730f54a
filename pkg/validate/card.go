package validate

import (
	"strings"

	"github.com/ShiraazMoollatjie/goluhn"
)

// IsCardNumber accepts 12 to 19 digits, optionally grouped with spaces or dashes, that pass
// the Luhn check.
func IsCardNumber(s string) bool {
	digits := NormalizeCard(s)
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	return goluhn.Validate(digits) == nil
}

func NormalizeCard(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}
