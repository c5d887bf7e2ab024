// Package rrset implements the packed-RRset collaborator summarized in
// spec.md §3: an RRset key, trust rank, security status, and the
// immutable packed data block that the RRset cache (C2) and message
// cache (C4) store. The pointer-array layout follows
// original_source/util/data/packed_rrset.c; the in-memory
// representation here uses plain Go slices instead of raw pointers but
// keeps the same "one header, three parallel arrays, trailing rdata"
// shape and the same fixup contract (Packed.Fixup / spec.md §6
// packed_rrset_ptr_fixup) so that moving or copying a Packed requires
// an explicit, auditable step.
package rrset

import (
	"hash/maphash"
	"strconv"

	"github.com/dnsresolver/rescache/dname"
)

// Key identifies an RRset in the cache: owner name, type, class, and a
// cache-side flags bitfield that splits otherwise-identical RRsets
// (spec.md §3, "e.g. NSEC at apex vs elsewhere").
type Key struct {
	Dname string // canonical, FQDN form
	Type  uint16 // network order on the wire; stored in network order
	Class uint16
	Flags uint32
}

// Flag bits for Key.Flags.
const (
	FlagNone      uint32 = 0
	FlagNSECApex  uint32 = 1 << 0 // NSEC owned at a zone apex
	FlagSynthetic uint32 = 1 << 1 // produced by DNAME->CNAME synthesis, not cached standalone
)

// Equal reports key equality by all four fields, per spec.md §3
// ("Equality is by all four fields").
func (k Key) Equal(other Key) bool {
	return k.Type == other.Type &&
		k.Class == other.Class &&
		k.Flags == other.Flags &&
		dname.Equal(k.Dname, other.Dname)
}

// String renders a stable, human-readable form of the key, used as the
// backing-map lookup string for the sharded caches.
func (k Key) String() string {
	d := dname.Canonical(k.Dname)
	return d + "\x00" + strconv.FormatUint(uint64(k.Type), 10) + "\x00" +
		strconv.FormatUint(uint64(k.Class), 10) + "\x00" + strconv.FormatUint(uint64(k.Flags), 10)
}

var keyHashSeed = maphash.MakeSeed()

// Hash combines dname (case-insensitive), type, class, and flags into
// a single hash, reproducible from a freshly parsed wire packet so
// that a parsed RRset hashes equal to its cached counterpart. This is
// `rrset_key_hash` from spec.md §6.
func (k Key) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(keyHashSeed)
	h.WriteString(dname.Canonical(k.Dname))
	var scratch [10]byte
	putUint16(scratch[0:2], k.Type)
	putUint16(scratch[2:4], k.Class)
	putUint32(scratch[4:8], k.Flags)
	h.Write(scratch[:8])
	return h.Sum64()
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// QueryInfo is the lookup key for the message cache: qname/qtype/qclass
// (spec.md §3 "Query info").
type QueryInfo struct {
	Qname  string
	Qtype  uint16
	Qclass uint16
}

// Hash is `query_info_hash` from spec.md §6: reproducible from the
// wire question section.
func (q QueryInfo) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(keyHashSeed)
	h.WriteString(dname.Canonical(q.Qname))
	var scratch [4]byte
	putUint16(scratch[0:2], q.Qtype)
	putUint16(scratch[2:4], q.Qclass)
	h.Write(scratch[:])
	return h.Sum64()
}

func (q QueryInfo) String() string {
	d := dname.Canonical(q.Qname)
	return d + "\x00" + strconv.FormatUint(uint64(q.Qtype), 10) + "\x00" + strconv.FormatUint(uint64(q.Qclass), 10)
}

// Ref is an eviction-safe handle to a cached RRset: the key plus the
// id the entry had when the reference was captured (spec.md §3
// "Reply-info" / §5 "Versioning"). A mismatch between Ref.ID and the
// live entry's id means the RRset has been evicted or replaced.
type Ref struct {
	Key Key
	ID  uint64
}

// RefsByKey sorts a slice of Refs by the total stable order over
// RRset keys that spec.md §5 requires before any multi-lock
// acquisition: "lexicographic by dname, then type, then class, then
// flags". Implements sort.Interface so it can be driven by
// github.com/twotwotwo/sorts (the teacher's own sorting dependency,
// _examples/johanix-tdns/tdns/dnsutils.go's `sorts.Quicksort`) as well
// as stdlib sort.
type RefsByKey []Ref

func (r RefsByKey) Len() int      { return len(r) }
func (r RefsByKey) Swap(i, j int) { r[i], r[j] = r[j], r[i] }
func (r RefsByKey) Less(i, j int) bool {
	return KeyLess(r[i].Key, r[j].Key)
}

// KeyLess implements the total stable order of spec.md §5:
// lexicographic by canonical dname, then type, then class, then flags.
func KeyLess(a, b Key) bool {
	da, db := dname.Canonical(a.Dname), dname.Canonical(b.Dname)
	if da != db {
		return da < db
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.Class != b.Class {
		return a.Class < b.Class
	}
	return a.Flags < b.Flags
}
