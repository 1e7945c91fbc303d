package dnssec

// Name arithmetic shared by the NSEC (nsec.go) and NSEC3 (nsec3.go) proof
// engines and by chain walking: label counting, suffix stripping, wildcard
// derivation and canonical ordering (RFC 4034 §6.1).

import (
	"strings"

	"github.com/miekg/dns"
)

// canonicalName lowercases and FQDN-normalizes a name for comparison/hashing.
func canonicalName(name string) string {
	return dns.CanonicalName(name)
}

// labelCount returns the number of labels in name, excluding the root label.
func labelCount(name string) int {
	return dns.CountLabel(dns.Fqdn(name))
}

// stripLeftLabels removes n labels from the left of name, walking toward the
// root. Used by the trust-anchor longest-suffix search and by the NSEC3
// closest-encloser walk.
func stripLeftLabels(name string, n int) string {
	labels := dns.SplitDomainName(name)
	if n >= len(labels) {
		return "."
	}

	return dns.Fqdn(strings.Join(labels[n:], "."))
}

