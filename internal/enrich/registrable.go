// Package enrich augments merged domain records with external signals:
// Tranco popularity ranks, RDAP registration age, fact-check claim counts,
// and Safe Browsing flags. Failed lookups leave the signal absent; no
// enrichment step ever fails a build.
package enrich

import "strings"

// twoLevelTLDs lists common second-level registry suffixes where the
// registrable domain has three labels (bbc.co.uk, not co.uk).
var twoLevelTLDs = map[string]bool{
	"co.uk":  true,
	"org.uk": true,
	"co.nz":  true,
	"co.za":  true,
	"co.in":  true,
	"com.au": true,
	"net.au": true,
	"com.br": true,
}

// RegistrableDomain reduces a canonical domain to the unit registries track:
// the last two labels, or three when the suffix is a known two-level TLD.
// RDAP endpoints only answer for registrable domains, not arbitrary
// subdomains.
func RegistrableDomain(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) <= 2 {
		return domain
	}

	suffix := strings.Join(labels[len(labels)-2:], ".")
	if twoLevelTLDs[suffix] && len(labels) >= 3 {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return suffix
}
