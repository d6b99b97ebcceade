package domain

import (
	"strings"

	dErrors "consular/pkg/domain-errors"
)

// CountryCode is an ISO 3166-1 alpha-2 country code, upper-cased.
// Organizations scope their schedules per country; the code selects which
// configuration (and therefore which time zone) applies.
type CountryCode string

// ParseCountryCode constructs a CountryCode from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or not two ASCII
// letters; no registry lookup is performed.
func ParseCountryCode(s string) (CountryCode, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "country code cannot be empty")
	}
	if len(s) != 2 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "country code must be two letters")
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "country code must be two letters")
		}
	}
	return CountryCode(strings.ToUpper(s)), nil
}

// String returns the string representation of the code.
func (c CountryCode) String() string {
	return string(c)
}
