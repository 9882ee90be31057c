package auth

import "strings"

const countryPrefix = "91"

// NormalizePhone reduces a phone number to its 10 significant digits,
// dropping punctuation and a leading country prefix when present. Input that
// does not reduce to 10 digits is returned stripped, for the caller to
// validate.
func NormalizePhone(raw string) string {
	digits := digitsOnly(raw)
	if len(digits) == len(countryPrefix)+10 && strings.HasPrefix(digits, countryPrefix) {
		return digits[len(countryPrefix):]
	}
	return digits
}

// ValidPhone reports whether the normalized number is exactly 10 digits.
func ValidPhone(normalized string) bool {
	if len(normalized) != 10 {
		return false
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
