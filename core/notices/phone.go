package notices

import (
	"strings"
	"unicode"
)

// NormalizePhone converts a local number to an international `+` form.
// Everything but digits and `+` is stripped; `00` becomes `+`, a leading `0` gets prefix,
// and a bare number of 10 to 13 digits is assumed local. Anything else is rejected.
func NormalizePhone(raw, prefix string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || r == '+' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", false
	}

	if strings.HasPrefix(digits, "00") {
		digits = "+" + digits[2:]
	}
	if strings.HasPrefix(digits, "0") {
		digits = prefix + digits
	}
	if !strings.HasPrefix(digits, "+") {
		if len(digits) < 10 || len(digits) > 13 {
			return "", false
		}
		digits = prefix + digits
	}
	if len(digits) < 2 {
		return "", false
	}
	return digits, true
}
