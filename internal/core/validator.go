package core

import "regexp"

var (
	regionCodePattern  = regexp.MustCompile(`^\d{5}$`)
	phoneNumberPattern = regexp.MustCompile(`^\+?\d{10,15}$`)
)

// IsValidRegionCode reports whether s is a five-digit region code.
// Alphanumeric codes such as "2A004" are rejected.
func IsValidRegionCode(s string) bool {
	return regionCodePattern.MatchString(s)
}

// IsValidPhoneNumber reports whether s is 10 to 15 digits with an optional leading '+'.
func IsValidPhoneNumber(s string) bool {
	return phoneNumberPattern.MatchString(s)
}
