package cache

import (
	"sort"

	"github.com/miekg/dns"

	arenapkg "github.com/dnsresolver/rescache/arena"
	"github.com/dnsresolver/rescache/dname"
	"github.com/dnsresolver/rescache/rrset"
)

// Header flag bits used by synthesized replies. Only the bits this
// package itself sets are named; spec.md treats full wire-flag packing
// as a Non-goal (wire-format serialization is out of scope), so Flags
// here is a minimal bitfield rather than a literal wire-compatible
// header word.
const (
	FlagQR uint16 = 1 << 15 // response
	FlagAA uint16 = 1 << 10 // authoritative answer
)

// Reply is a synthesized or copied-out answer, owned entirely by the
// arena it was built in: it references no cache memory once returned
// (spec.md §3 "Ownership"). On the exact-hit path RRsets are in the
// stored reply-info's reference order, which is the total key order of
// spec.md §5 rather than section order; synthesized replies hold the
// DNAME, then the CNAME.
type Reply struct {
	Flags   uint16
	Rcode   int
	Qdcount uint16
	AnCount uint16
	NsCount uint16
	ArCount uint16
	RRsets  []*rrset.Packed
}

// Lookup is C6 (spec.md §4.6): attempts, in order, an exact message
// hit, DNAME synonym synthesis, then CNAME synthesis, returning nil on
// a full miss. now is taken once for this operation (spec.md §5).
// arena owns all returned data; scratch is not used by this
// implementation, since C2.Touch takes the stored reference slice
// directly and no transient list is built.
func (e *Env) Lookup(qname string, qtype, qclass uint16, now uint32, a, scratch *arenapkg.Arena) *Reply {
	qname, ok := dname.Valid(qname)
	if !ok {
		return nil
	}

	if reply := e.lookupExact(qname, qtype, qclass, now, a); reply != nil {
		return reply
	}
	if reply := e.lookupDNAME(qname, qtype, qclass, now, a); reply != nil {
		return reply
	}
	if reply := e.lookupCNAME(qname, qclass, now, a); reply != nil {
		return reply
	}
	return nil
}

// lookupExact is spec.md §4.6(a).
func (e *Env) lookupExact(qname string, qtype, qclass uint16, now uint32, a *arenapkg.Arena) *Reply {
	qi := rrset.QueryInfo{Qname: qname, Qtype: qtype, Qclass: qclass}
	lm := e.Msgs.Lookup(qi)
	if lm == nil {
		return nil
	}
	info := lm.Info()

	if e.Debug && !sort.IsSorted(rrset.RefsByKey(info.Refs)) {
		// Invariant 1 (spec.md §8): a stored reply-info's references
		// are always in total key order. A violation here would mean
		// C5 admitted an unsorted reply-info; surface it rather than
		// silently locking out of order.
		e.logf("cache: reply-info for %s has out-of-order refs", qi.String())
	}

	locked := make([]*LockedRRset, 0, len(info.Refs))
	releaseAll := func() {
		for _, l := range locked {
			l.Release()
		}
	}

	for _, ref := range info.Refs {
		l := e.RRsets.LookupRef(ref, now)
		if l == nil {
			releaseAll()
			lm.Release()
			return nil // a referenced RRset has been evicted or replaced
		}
		locked = append(locked, l)
	}

	if info.TTLAbsolute <= now {
		releaseAll()
		lm.Release()
		return nil
	}

	copies := make([]*rrset.Packed, 0, len(locked))
	for _, l := range locked {
		cp := copyIntoArena(l.Data(), a, now)
		if cp == nil {
			releaseAll()
			lm.Release()
			return nil // arena exhausted: fail gracefully (§4.6.2)
		}
		copies = append(copies, cp)
	}

	releaseAll()
	lm.Release()

	e.RRsets.Touch(info.Refs)

	return &Reply{
		Flags:   info.Flags,
		Rcode:   dns.RcodeSuccess,
		Qdcount: info.Qdcount,
		AnCount: info.AnCount,
		NsCount: info.NsCount,
		ArCount: info.ArCount,
		RRsets:  copies,
	}
}

// copyIntoArena implements spec.md §4.5 copy_rrset: deep-copies p into
// the arena, rewriting TTLs from absolute back to relative. The
// arena's byte budget is charged p's cache-accounting size before the
// copy is built; a nil return means the arena is exhausted and the
// caller must treat this as a local miss (§4.6.2, §7).
func copyIntoArena(p *rrset.Packed, a *arenapkg.Arena, now uint32) *rrset.Packed {
	if a.Alloc(p.Sizeof()) == nil {
		return nil
	}
	return p.WithTTLRelative(now)
}

// lookupDNAME is spec.md §4.6(b)/§4.6.1.
func (e *Env) lookupDNAME(qname string, qtype, qclass uint16, now uint32, a *arenapkg.Arena) *Reply {
	var found *rrset.Packed
	var owner string

	dname.WalkToRoot(qname, func(prefix string) bool {
		key := rrset.Key{Dname: prefix, Type: dns.TypeDNAME, Class: qclass}
		l := e.RRsets.Lookup(key, now, false)
		if l == nil {
			return true // keep walking toward the root
		}
		cp := copyIntoArena(l.Data(), a, now)
		l.Release()
		if cp == nil {
			return false // arena exhausted: stop, treat as no hit
		}
		found = cp
		owner = prefix
		return false
	})

	if found == nil {
		return nil
	}
	if found.Security == rrset.SecurityBogus {
		// Don't synthesize from a known-bad RRset (SPEC_FULL.md C1
		// expansion).
		return nil
	}

	target, ok := rrset.CNAMETarget(found)
	if !ok {
		return nil
	}

	newTarget, overflow := synthesizeDNAMETarget(qname, owner, target)
	if overflow {
		return &Reply{
			Flags:   FlagQR,
			Rcode:   dns.RcodeYXDomain,
			AnCount: 0,
			NsCount: 0,
			ArCount: 0,
			RRsets:  []*rrset.Packed{found},
		}
	}

	cnameRR := &dns.CNAME{
		Hdr: dns.RR_Header{
			Name:   qname,
			Rrtype: dns.TypeCNAME,
			Class:  qclass,
			Ttl:    0,
		},
		Target: newTarget,
	}
	synthesized := rrset.NewFromWire([]dns.RR{cnameRR}, nil, 0, rrset.TrustAnsNoAA, rrset.SecurityUnchecked)
	if a.Alloc(synthesized.Sizeof()) == nil {
		return nil
	}

	return &Reply{
		Rcode:  dns.RcodeSuccess,
		Flags:  FlagQR,
		RRsets: []*rrset.Packed{found, synthesized},
	}
}

// synthesizeDNAMETarget implements spec.md §4.6.1's name-growth
// arithmetic: the synthesized CNAME target is the portion of qname
// that precedes the DNAME's owner, with the DNAME's target appended in
// its place.
func synthesizeDNAMETarget(qname, dnameOwner, dtarg string) (target string, overflow bool) {
	qname = dns.Fqdn(qname)
	dnameOwner = dns.Fqdn(dnameOwner)
	dtarg = dns.Fqdn(dtarg)

	prefixLen := len(qname) - len(dnameOwner)
	if prefixLen < 0 {
		prefixLen = 0
	}
	prefix := qname[:prefixLen]
	newTarget := dns.Fqdn(prefix + dtarg)
	if len(newTarget) > dname.MaxLength {
		return "", true
	}
	return newTarget, false
}

// lookupCNAME is spec.md §4.6(c).
func (e *Env) lookupCNAME(qname string, qclass uint16, now uint32, a *arenapkg.Arena) *Reply {
	key := rrset.Key{Dname: qname, Type: dns.TypeCNAME, Class: qclass}
	l := e.RRsets.Lookup(key, now, false)
	if l == nil {
		return nil
	}
	cp := copyIntoArena(l.Data(), a, now)
	l.Release()
	if cp == nil {
		return nil
	}
	return &Reply{
		Rcode:   dns.RcodeSuccess,
		Flags:   FlagQR,
		AnCount: 1,
		RRsets:  []*rrset.Packed{cp},
	}
}
