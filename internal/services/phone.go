package services

import (
	"fmt"
	"regexp"
)

// Slug constants: resubmissions store the original phone number with a
// zero-padded numeric suffix so the unique index is never violated.
const (
	slugDigits    = 5
	maxSlugSuffix = 99999
)

var trailingSlugPattern = regexp.MustCompile(`^(.+?)(\d{5})$`)

func slugSuffix(n int) string {
	return fmt.Sprintf("%0*d", slugDigits, n)
}

// ExtractOriginalPhoneNumber strips a trailing 5-digit suffix from a slugged
// phone number. This is a heuristic, not a stored back-reference: a phone
// number that organically ends in five digits is indistinguishable from a
// slugged one. Live request paths query by known-original prefix instead and
// never rely on this function.
func ExtractOriginalPhoneNumber(phoneNumber string) string {
	match := trailingSlugPattern.FindStringSubmatch(phoneNumber)
	if match == nil {
		return phoneNumber
	}
	return match[1]
}
