// Package merge canonicalizes raw domain strings and reconciles category
// labels from multiple source lists into the unified taxonomy.
package merge

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

// InvalidDomainError reports a domain string that cannot be canonicalized.
// Records with invalid domains are excluded from the build.
type InvalidDomainError struct {
	Input  string
	Reason string
}

func (e *InvalidDomainError) Error() string {
	return fmt.Sprintf("invalid domain %q: %s", e.Input, e.Reason)
}

// NormalizeDomain canonicalizes a domain-like string so that records from
// different sources key-match: lowercase, a single leading scheme stripped,
// a single leading "www." stripped, a single trailing slash stripped, and
// internationalized labels converted to their ASCII (punycode) form.
// Idempotent: a canonical domain passes through unchanged.
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(raw)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, "/")

	if d == "" {
		return "", &InvalidDomainError{Input: raw, Reason: "empty after normalization"}
	}
	if strings.ContainsFunc(d, unicode.IsSpace) {
		return "", &InvalidDomainError{Input: raw, Reason: "contains whitespace"}
	}

	if !isASCII(d) {
		ascii, err := idna.Lookup.ToASCII(d)
		if err != nil {
			return "", &InvalidDomainError{Input: raw, Reason: "not representable as ASCII"}
		}
		d = ascii
	}

	if !strings.Contains(d, ".") {
		return "", &InvalidDomainError{Input: raw, Reason: "missing dot"}
	}

	return d, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
