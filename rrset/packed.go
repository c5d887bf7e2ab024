package rrset

import (
	"github.com/miekg/dns"
)

// Packed is one contiguous RRset admission: a fixed header followed by
// three parallel arrays of length Count+RRSIGCount (per-RR wire length,
// per-RR data, per-RR absolute TTL), matching the layout described in
// spec.md §3 and original_source/util/data/packed_rrset.c. The "rdata
// pointer" array is `rrs` here: slices of dns.RR that alias the
// trailing data held in `data`. Any operation that relocates `data`
// (a copy into an arena, e.g.) invalidates `rrs` until Fixup is called
// — this mirors the C implementation's requirement to recompute
// internal pointers after a move (spec.md §6 packed_rrset_ptr_fixup).
//
// Wire (de)serialization itself is out of scope (spec.md Non-goals);
// `data` holds copies of parsed dns.RR values rather than raw wire
// bytes, and Sizeof uses dns.Len per RR for cache-accounting purposes.
type Packed struct {
	TTLAbsolute uint32
	Count       uint16 // number of non-signature RRs
	RRSIGCount  uint16
	Trust       TrustRank
	Security    Security

	data   []dns.RR // length Count+RRSIGCount; RRs first, RRSIGs after
	rrTTL  []uint32 // parallel to data, absolute TTL per RR (relative in a WithTTLRelative copy)
	rrLen  []int    // parallel to data, wire length per RR (cache accounting)
	rrs    []dns.RR // "fixed up" view over data[:Count]; nil until Fixup
	rrsigs []dns.RR // "fixed up" view over data[Count:]; nil until Fixup
}

// NewFromWire builds a Packed admission from freshly resolved RRs and
// RRSIGs with relative TTLs, normalizing them to absolute deadlines at
// `now` (spec.md §4.4 step 3: "Normalize TTLs to absolute"). The
// overall set TTL is the minimum per-RR TTL (spec.md §3 invariant).
func NewFromWire(rrs, rrsigs []dns.RR, now uint32, trust TrustRank, sec Security) *Packed {
	count := len(rrs)
	total := count + len(rrsigs)
	p := &Packed{
		Count:      uint16(count),
		RRSIGCount: uint16(len(rrsigs)),
		Trust:      trust,
		Security:   sec,
		data:       make([]dns.RR, 0, total),
		rrTTL:      make([]uint32, 0, total),
		rrLen:      make([]int, 0, total),
	}
	minTTL := ^uint32(0)
	add := func(rr dns.RR) {
		cp := dns.Copy(rr)
		rel := cp.Header().Ttl
		abs := SaturatingAdd(now, rel)
		cp.Header().Ttl = abs
		p.data = append(p.data, cp)
		p.rrTTL = append(p.rrTTL, abs)
		p.rrLen = append(p.rrLen, dns.Len(rr))
		if rel < minTTL {
			minTTL = rel
		}
	}
	for _, rr := range rrs {
		add(rr)
	}
	for _, rr := range rrsigs {
		add(rr)
	}
	if count == 0 {
		minTTL = 0
	}
	p.TTLAbsolute = SaturatingAdd(now, minTTL)
	p.Fixup()
	return p
}

// SaturatingAdd implements §5's "unsigned arithmetic with saturation
// at the boundaries" for TTL-to-deadline conversion.
func SaturatingAdd(now, rel uint32) uint32 {
	sum := uint64(now) + uint64(rel)
	if sum > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sum)
}

// SaturatingSub implements the same rule for deadline-to-relative
// conversion (copy-out, spec.md §4.5): never negative.
func SaturatingSub(abs, now uint32) uint32 {
	if abs <= now {
		return 0
	}
	return abs - now
}

// Fixup recomputes the internal `rrs`/`rrsigs` views over `data`. It
// must be called after any operation that replaces `data` wholesale
// (construction, or a deep copy into an arena) before the views are
// read. This is `packed_rrset_ptr_fixup` from spec.md §6.
func (p *Packed) Fixup() {
	if p == nil {
		return
	}
	p.rrs = p.data[:p.Count]
	p.rrsigs = p.data[p.Count:]
}

// RRs returns the non-signature resource records. Fixup must have been
// called since the last mutation of data.
func (p *Packed) RRs() []dns.RR {
	if p == nil {
		return nil
	}
	return p.rrs
}

// RRSIGs returns the signature records sharing this admission.
func (p *Packed) RRSIGs() []dns.RR {
	if p == nil {
		return nil
	}
	return p.rrsigs
}

// Sizeof returns the approximate byte size of this packed block, for
// cache accounting (spec.md §6 packed_rrset_sizeof). The fixed header
// is accounted as a constant; each RR contributes its wire length plus
// the parallel-array entries (length, ttl) it occupies.
func (p *Packed) Sizeof() int {
	if p == nil {
		return 0
	}
	const headerSize = 4 /*ttl*/ + 2 /*count*/ + 2 /*rrsig count*/ + 1 /*trust*/ + 1 /*security*/
	const perRROverhead = 4 /*len*/ + 4 /*ttl*/
	total := headerSize
	for _, l := range p.rrLen {
		total += l + perRROverhead
	}
	return total
}

// WithTTLRelative returns a deep copy of p suitable for handing to a
// caller outside the cache: every per-RR TTL (in the RR headers and in
// the per-RR TTL array) is rewritten from absolute back to relative
// (`abs - now`), per spec.md §4.5 copy_rrset. The set-level
// TTLAbsolute is copied unchanged, so TTLRelative(now) on the copy
// still reports the relative set TTL. The internal
// arrays are rebuilt from scratch and Fixup is invoked before return,
// because the layout is self-relative but not auto-relocating.
func (p *Packed) WithTTLRelative(now uint32) *Packed {
	if p == nil {
		return nil
	}
	cp := &Packed{
		TTLAbsolute: p.TTLAbsolute,
		Count:       p.Count,
		RRSIGCount:  p.RRSIGCount,
		Trust:       p.Trust,
		Security:    p.Security,
		data:        make([]dns.RR, len(p.data)),
		rrTTL:       make([]uint32, len(p.rrTTL)),
		rrLen:       append([]int(nil), p.rrLen...),
	}
	for i, rr := range p.data {
		rrCopy := dns.Copy(rr)
		rel := SaturatingSub(p.rrTTL[i], now)
		rrCopy.Header().Ttl = rel
		cp.data[i] = rrCopy
		cp.rrTTL[i] = rel
	}
	cp.Fixup()
	return cp
}

// ToAbsolute returns a deep copy of p with every TTL (per-RR and set
// level) shifted from relative to absolute by adding `now`. This is
// spec.md §4.4 step 3 ("Normalize TTLs to absolute... precondition:
// inputs are relative; postcondition: all TTLs are wall-clock
// deadlines"), applied to a freshly built, not-yet-admitted RRset.
func (p *Packed) ToAbsolute(now uint32) *Packed {
	if p == nil {
		return nil
	}
	cp := &Packed{
		TTLAbsolute: SaturatingAdd(p.TTLAbsolute, now),
		Count:       p.Count,
		RRSIGCount:  p.RRSIGCount,
		Trust:       p.Trust,
		Security:    p.Security,
		data:        make([]dns.RR, len(p.data)),
		rrTTL:       make([]uint32, len(p.rrTTL)),
		rrLen:       append([]int(nil), p.rrLen...),
	}
	for i, rr := range p.data {
		rrCopy := dns.Copy(rr)
		abs := SaturatingAdd(p.rrTTL[i], now)
		rrCopy.Header().Ttl = abs
		cp.data[i] = rrCopy
		cp.rrTTL[i] = abs
	}
	cp.Fixup()
	return cp
}

// TTLRelative returns the set-level TTL as seen by a caller at `now`,
// saturating at zero.
func (p *Packed) TTLRelative(now uint32) uint32 {
	if p == nil {
		return 0
	}
	return SaturatingSub(p.TTLAbsolute, now)
}

// Expired reports whether the set's absolute TTL is at or before now
// (spec.md invariant 3: "No RRset is returned with absolute TTL <= now").
func (p *Packed) Expired(now uint32) bool {
	if p == nil {
		return true
	}
	return p.TTLAbsolute <= now
}

// CNAMETarget extracts the single target name from a CNAME or DNAME
// RRset, or ("", false) otherwise. This is `get_cname_target` from
// spec.md §6.
func CNAMETarget(p *Packed) (string, bool) {
	if p == nil || len(p.RRs()) == 0 {
		return "", false
	}
	switch rr := p.RRs()[0].(type) {
	case *dns.CNAME:
		return rr.Target, true
	case *dns.DNAME:
		return rr.Target, true
	default:
		return "", false
	}
}
