package cache

import (
	"strings"

	"github.com/miekg/dns"
)

// RootHints is the last-resort delegation seed consulted by
// FindDelegation when no NS RRset is cached anywhere up to the root
// (SPEC_FULL.md's C7 expansion). Adapted from
// _examples/johanix-tdns/tdns/cache/roothints.go's CompiledInRootHints
// zone-file string and the teacher's PrimeWithHints
// (_examples/johanix-tdns/tdns/imr_helpers.go), but reduced to exactly
// what the delegation finder needs: a zone name, its NS names, and
// A/AAAA glue.
type RootHints struct {
	Zone string
	NS   []string
	Glue map[string][]string // nsname -> address strings (A or AAAA)
}

// CompiledInRootHints is the current IANA root server set, compiled in
// exactly as _examples/johanix-tdns/tdns/cache/roothints.go carries it,
// so a resolver embedding this package needn't ship a root-hints file
// to prime FindDelegation above the root.
const CompiledInRootHintsZone = `; Root hints file - IANA root servers
.                       3600000  IN  NS    a.root-servers.net.
.                       3600000  IN  NS    b.root-servers.net.
.                       3600000  IN  NS    c.root-servers.net.
.                       3600000  IN  NS    d.root-servers.net.
.                       3600000  IN  NS    e.root-servers.net.
.                       3600000  IN  NS    f.root-servers.net.
.                       3600000  IN  NS    g.root-servers.net.
.                       3600000  IN  NS    h.root-servers.net.
.                       3600000  IN  NS    i.root-servers.net.
.                       3600000  IN  NS    j.root-servers.net.
.                       3600000  IN  NS    k.root-servers.net.
.                       3600000  IN  NS    l.root-servers.net.
.                       3600000  IN  NS    m.root-servers.net.
a.root-servers.net.     3600000  IN  A     198.41.0.4
a.root-servers.net.     3600000  IN  AAAA  2001:503:ba3e::2:30
b.root-servers.net.     3600000  IN  A     170.247.170.2
b.root-servers.net.     3600000  IN  AAAA  2801:1b8:10::b
c.root-servers.net.     3600000  IN  A     192.33.4.12
c.root-servers.net.     3600000  IN  AAAA  2001:500:2::c
d.root-servers.net.     3600000  IN  A     199.7.91.13
d.root-servers.net.     3600000  IN  AAAA  2001:500:2d::d
e.root-servers.net.     3600000  IN  A     192.203.230.10
e.root-servers.net.     3600000  IN  AAAA  2001:500:a8::e
f.root-servers.net.     3600000  IN  A     192.5.5.241
f.root-servers.net.     3600000  IN  AAAA  2001:500:2f::f
g.root-servers.net.     3600000  IN  A     192.112.36.4
g.root-servers.net.     3600000  IN  AAAA  2001:500:12::d0d
h.root-servers.net.     3600000  IN  A     198.97.190.53
h.root-servers.net.     3600000  IN  AAAA  2001:500:1::53
i.root-servers.net.     3600000  IN  A     192.36.148.17
i.root-servers.net.     3600000  IN  AAAA  2001:7fe::53
j.root-servers.net.     3600000  IN  A     192.58.128.30
j.root-servers.net.     3600000  IN  AAAA  2001:503:c27::2:30
k.root-servers.net.     3600000  IN  A     193.0.14.129
k.root-servers.net.     3600000  IN  AAAA  2001:7fd::1
l.root-servers.net.     3600000  IN  A     199.7.83.42
l.root-servers.net.     3600000  IN  AAAA  2001:500:9f::42
m.root-servers.net.     3600000  IN  A     202.12.27.33
m.root-servers.net.     3600000  IN  AAAA  2001:dc3::35
`

// ParseRootHints parses a zone-file-shaped hints string (the same
// shape as _examples/johanix-tdns/tdns/cache/roothints.go's
// CompiledInRootHints) into a RootHints value, using dns.ZoneParser the
// way the teacher's config loader would (config loading proper is a
// Non-goal; this is a pure in-memory parse of a compiled-in string,
// not file I/O).
func ParseRootHints(zone string) (*RootHints, error) {
	rh := &RootHints{Zone: ".", Glue: map[string][]string{}}
	zp := dns.NewZoneParser(strings.NewReader(zone), "", "")
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		switch v := rr.(type) {
		case *dns.NS:
			rh.NS = append(rh.NS, dns.CanonicalName(v.Ns))
		case *dns.A:
			name := dns.CanonicalName(v.Hdr.Name)
			rh.Glue[name] = append(rh.Glue[name], v.A.String())
		case *dns.AAAA:
			name := dns.CanonicalName(v.Hdr.Name)
			rh.Glue[name] = append(rh.Glue[name], v.AAAA.String())
		}
	}
	if err := zp.Err(); err != nil {
		return nil, err
	}
	return rh, nil
}
