// Package dname implements the canonical DNS name handling that the
// cache core treats as an external collaborator: case-insensitive
// comparison, wire-reproducible hashing, and the root-ward label walk
// used by DNAME synonym search and closest-enclosing delegation search.
package dname

import (
	"hash/maphash"
	"strings"

	"github.com/miekg/dns"
)

// MaxLength is the maximum encoded length of a DNS name, in octets,
// including the terminating zero label.
const MaxLength = 255

var seed = maphash.MakeSeed()

// Valid reports whether name is a syntactically valid, fully-qualified
// DNS name no longer than MaxLength octets. It mirrors the collaborator
// interface `dname_valid` from spec.md §6: on success it returns the
// canonical (FQDN, case-preserved) form and true; on failure it returns
// ("", false).
func Valid(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	fqdn := dns.Fqdn(name)
	if len(fqdn) > MaxLength {
		return "", false
	}
	if !dns.IsDomainName(fqdn) {
		return "", false
	}
	return fqdn, true
}

// Canonical lower-cases a name for case-insensitive comparison and
// hashing, per spec.md §3 ("compared case-insensitively label-by-label").
func Canonical(name string) string {
	return dns.CanonicalName(name)
}

// Equal reports whether two names are equal under DNS's case-
// insensitive comparison. This is `query_dname_compare` from spec.md §6.
func Equal(a, b string) bool {
	return strings.EqualFold(dns.Fqdn(a), dns.Fqdn(b))
}

// QueryHash computes a hash of a canonical name that is reproducible
// from a freshly parsed wire packet, i.e. it depends only on the
// case-folded label sequence. This is `dname_query_hash` from
// spec.md §6.
func QueryHash(name string) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(Canonical(name))
	return h.Sum64()
}

// Labels splits a canonical name into its component labels, root-
// first is NOT implied; this returns owner-to-root order as
// dns.SplitDomainName does, suitable for walking prefixes toward the
// root one label at a time.
func Labels(name string) []string {
	// SplitDomainName returns nil for the root ".".
	return dns.SplitDomainName(dns.Fqdn(name))
}

// WalkToRoot calls fn with each suffix of name starting at name itself
// and proceeding one label at a time up to and including the root
// zone ".", stopping early if fn returns false. This implements the
// "walk qname label-by-label toward the root" behavior used by C6(b)
// DNAME search and C7(1) closest-enclosing NS search in spec.md §4.6
// and §4.7.
func WalkToRoot(name string, fn func(prefix string) bool) {
	cur := dns.Fqdn(name)
	labels := dns.SplitDomainName(cur)
	if len(labels) == 0 {
		fn(".")
		return
	}
	for i := 0; i <= len(labels); i++ {
		suffix := dns.Fqdn(strings.Join(labels[i:], "."))
		if !fn(suffix) {
			return
		}
	}
}

// IsSubdomain reports whether name is equal to or a descendant of
// zone, under case-insensitive comparison.
func IsSubdomain(name, zone string) bool {
	name = dns.Fqdn(name)
	zone = dns.Fqdn(zone)
	return dns.IsSubDomain(zone, name)
}
