// Package phone normalizes mobile-money numbers to the long-form
// national format the payout gateway expects: country-code prefixed,
// no plus sign, no leading zero (254712345678).
package phone

import (
	"regexp"
	"strings"

	"marketplace-escrow/internal/apperr"
)

const countryCode = "254"

// canonical form after rewriting: 254 followed by 9 digits
var msisdnPattern = regexp.MustCompile(`^254[17]\d{8}$`)

// Normalize accepts the common user entry forms (0712345678,
// +254712345678, 254712345678) and returns the canonical gateway form.
func Normalize(raw string) (string, error) {
	n := strings.TrimSpace(raw)
	n = strings.ReplaceAll(n, " ", "")

	switch {
	case strings.HasPrefix(n, "+"):
		n = n[1:]
	case strings.HasPrefix(n, "0"):
		n = countryCode + n[1:]
	}

	if !msisdnPattern.MatchString(n) {
		return "", apperr.Validationf("phone number %q is not a valid mobile money number", raw)
	}
	return n, nil
}
