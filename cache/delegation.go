package cache

import (
	"net"

	"github.com/miekg/dns"

	arenapkg "github.com/dnsresolver/rescache/arena"
	"github.com/dnsresolver/rescache/dname"
	"github.com/dnsresolver/rescache/rrset"
)

// Nameserver is one delegated server in a DelegationPoint: its name,
// and (once resolved) its A and AAAA glue.
type Nameserver struct {
	Name string
	A    *rrset.Packed
	AAAA *rrset.Packed
}

// DelegationPoint is the arena-owned result of FindDelegation (spec.md
// §4.7's "delegation point is a mutable builder... a zone name plus an
// ordered list of nameservers, each with a name and two optional
// address RRset references"). It references no cache memory once
// returned: every RRset attached to it was either copied out via
// copyIntoArena or, on the root-hints fallback, built fresh from
// e.RootHints.
type DelegationPoint struct {
	Zone        string
	NS          *rrset.Packed
	Nameservers []Nameserver
	DS          *rrset.Packed
	NSEC        *rrset.Packed
}

// FindDelegation is C7 (spec.md §4.7): finds the closest enclosing NS
// RRset for qname, attaches DS/NSEC proof and glue, and optionally
// builds a referral Reply (the root-hints fallback never builds one).
// It returns nil if no NS RRset is cached
// anywhere up to the root and no RootHints are configured as a
// last-resort fallback (step 2's "caller must fall back to configured
// hints" is implemented here by consulting e.RootHints directly, since
// root-hints priming is this package's own concern per SPEC_FULL.md's
// C7 expansion).
//
// Arena exhaustion while copying an RRset out of the cache is treated
// like a cache miss for that RRset (see lookupCopy): the NS walk moves
// on to the next ancestor, and a DS/NSEC proof or glue that cannot be
// copied is left out of the returned delegation point. Only the
// root-hints fallback returns nil on arena exhaustion.
func (e *Env) FindDelegation(qname string, qtype, qclass uint16, now uint32, a, scratch *arenapkg.Arena, wantMsg bool) (*DelegationPoint, *Reply) {
	qname, ok := dname.Valid(qname)
	if !ok {
		return nil, nil
	}

	zone, nsPacked := e.closestEnclosingNS(qname, qclass, now, a)
	if nsPacked == nil {
		return e.rootHintsFallback(qclass, a)
	}

	nsNames := nsNamesOf(nsPacked)

	dp := &DelegationPoint{
		Zone: zone,
		NS:   nsPacked,
	}

	var reply *Reply
	if wantMsg {
		reply = &Reply{
			Flags:  FlagQR,
			Rcode:  dns.RcodeSuccess,
			RRsets: make([]*rrset.Packed, 0, 2+2*len(nsNames)),
		}
		reply.RRsets = append(reply.RRsets, nsPacked)
		reply.NsCount = 1
	}

	// Step 5: DS/NSEC coupling at the NS owner. No apex-vs-parent NSEC
	// distinction is made: the NSEC key is looked up with flags 0.
	if ds := e.lookupCopy(zone, dns.TypeDS, qclass, now, a); ds != nil {
		dp.DS = ds
		if reply != nil {
			reply.RRsets = append(reply.RRsets, ds)
			reply.NsCount++
		}
	} else if nsec := e.lookupCopy(zone, dns.TypeNSEC, qclass, now, a); nsec != nil {
		dp.NSEC = nsec
		if reply != nil {
			reply.RRsets = append(reply.RRsets, nsec)
			reply.NsCount++
		}
	}

	// Step 6: glue.
	dp.Nameservers = make([]Nameserver, 0, len(nsNames))
	for _, nsname := range nsNames {
		ns := Nameserver{Name: nsname}
		if aRR := e.lookupCopy(nsname, dns.TypeA, qclass, now, a); aRR != nil {
			ns.A = aRR
			if reply != nil {
				reply.RRsets = append(reply.RRsets, aRR)
				reply.ArCount++
			}
		}
		if aaaa := e.lookupCopy(nsname, dns.TypeAAAA, qclass, now, a); aaaa != nil {
			ns.AAAA = aaaa
			if reply != nil {
				reply.RRsets = append(reply.RRsets, aaaa)
				reply.ArCount++
			}
		}
		dp.Nameservers = append(dp.Nameservers, ns)
	}

	return dp, reply
}

// closestEnclosingNS is step 1: walk qname root-ward, probing the
// RRset cache for an NS RRset at each prefix; the first hit (closest
// to qname) wins.
func (e *Env) closestEnclosingNS(qname string, qclass uint16, now uint32, a *arenapkg.Arena) (zone string, ns *rrset.Packed) {
	dname.WalkToRoot(qname, func(prefix string) bool {
		cp := e.lookupCopy(prefix, dns.TypeNS, qclass, now, a)
		if cp == nil {
			return true // keep walking toward the root
		}
		zone = prefix
		ns = cp
		return false
	})
	return zone, ns
}

// lookupCopy probes the RRset cache for (name, t, class) and, on a hit,
// copies it into the arena (spec.md §4.5 copy_rrset), releasing the
// cache lock before returning — step 7's "locks on any RRset examined
// are released before the next lookup so locks are never held across
// more than one cache operation". Returns nil on a cache miss or on
// arena exhaustion; callers cannot distinguish the two, matching
// spec.md §7's uniform non-fatal-abort treatment of both.
func (e *Env) lookupCopy(name string, t, class uint16, now uint32, a *arenapkg.Arena) *rrset.Packed {
	key := rrset.Key{Dname: name, Type: t, Class: class}
	l := e.RRsets.Lookup(key, now, false)
	if l == nil {
		return nil
	}
	cp := copyIntoArena(l.Data(), a, now)
	l.Release()
	return cp
}

// nsNamesOf extracts the target names out of an NS RRset's records.
func nsNamesOf(p *rrset.Packed) []string {
	rrs := p.RRs()
	names := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		if ns, ok := rr.(*dns.NS); ok {
			names = append(names, dns.CanonicalName(ns.Ns))
		}
	}
	return names
}

// rootHintsFallback implements step 2's "caller must fall back to
// configured hints" using e.RootHints, since no NS RRset was found
// anywhere up to the root. The hints are synthesized into an
// arena-owned delegation point shaped like one found in the cache at
// the root zone; no referral Reply is built on this path, even when
// FindDelegation was asked for one.
func (e *Env) rootHintsFallback(qclass uint16, a *arenapkg.Arena) (*DelegationPoint, *Reply) {
	if e.RootHints == nil || len(e.RootHints.NS) == 0 {
		return nil, nil
	}
	rh := e.RootHints

	nsRRs := make([]dns.RR, 0, len(rh.NS))
	for _, name := range rh.NS {
		nsRRs = append(nsRRs, &dns.NS{
			Hdr: dns.RR_Header{Name: rh.Zone, Rrtype: dns.TypeNS, Class: qclass, Ttl: 3600000},
			Ns:  name,
		})
	}
	nsPacked := rrset.NewFromWire(nsRRs, nil, 0, rrset.TrustAddNoAA, rrset.SecurityUnchecked)
	if a.Alloc(nsPacked.Sizeof()) == nil {
		return nil, nil
	}

	dp := &DelegationPoint{Zone: rh.Zone, NS: nsPacked}
	dp.Nameservers = make([]Nameserver, 0, len(rh.NS))
	for _, name := range rh.NS {
		ns := Nameserver{Name: name}
		for _, addr := range rh.Glue[name] {
			rr, err := addrRR(name, qclass, addr)
			if err != nil || rr == nil {
				continue
			}
			packed := rrset.NewFromWire([]dns.RR{rr}, nil, 0, rrset.TrustAddNoAA, rrset.SecurityUnchecked)
			if a.Alloc(packed.Sizeof()) == nil {
				return nil, nil
			}
			if _, ok := rr.(*dns.AAAA); ok {
				ns.AAAA = packed
			} else {
				ns.A = packed
			}
		}
		dp.Nameservers = append(dp.Nameservers, ns)
	}
	return dp, nil
}

func addrRR(name string, class uint16, addr string) (dns.RR, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, nil
	}
	hdr := dns.RR_Header{Name: name, Class: class, Ttl: 3600000}
	if v4 := ip.To4(); v4 != nil {
		hdr.Rrtype = dns.TypeA
		return &dns.A{Hdr: hdr, A: v4}, nil
	}
	hdr.Rrtype = dns.TypeAAAA
	return &dns.AAAA{Hdr: hdr, AAAA: ip}, nil
}
