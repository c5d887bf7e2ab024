package cache

import (
	"github.com/twotwotwo/sorts"

	"github.com/dnsresolver/rescache/rrset"
)

// FreshRRset is a single RRset as freshly resolved, with relative TTLs
// (built via rrset.NewFromWire(rrs, rrsigs, 0, trust, security)),
// awaiting admission into the RRset cache.
type FreshRRset struct {
	Key  rrset.Key
	Data *rrset.Packed
}

// FreshReply is a freshly resolved reply awaiting admission, mirroring
// ReplyInfo's shape but with a relative TTL and inline RRset data
// instead of cache references (spec.md §4.4's input to store_msg).
// TTL == 0 signals "do not cache the message" (spec.md §4.4 step 5).
type FreshReply struct {
	Flags   uint16
	Qdcount uint16
	TTL     uint32
	AnCount uint16
	NsCount uint16
	ArCount uint16
	RRsets  []FreshRRset
}

// pendingAdmission pairs a not-yet-admitted RRset ref with its packed
// data, so the pair can travel together through the sort step
// (spec.md §4.4 step 2) before individual admission (step 4).
type pendingAdmission struct {
	ref  rrset.Ref
	data *rrset.Packed
}

type pendingsByKey []pendingAdmission

func (p pendingsByKey) Len() int      { return len(p) }
func (p pendingsByKey) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p pendingsByKey) Less(i, j int) bool {
	return rrset.KeyLess(p[i].ref.Key, p[j].ref.Key)
}

// StoreMsg is C5 (spec.md §4.4): given a freshly resolved reply,
// promote its RRsets into the RRset cache and, unless the reply is
// marked "do not cache" (TTL==0), promote the reply itself into the
// message cache under qi. now is the wall-clock second count for this
// top-level operation (spec.md §5: "now is taken once per top-level
// operation").
func (e *Env) StoreMsg(qi rrset.QueryInfo, reply *FreshReply, now uint32) {
	// Step 1: capture one ref per RRset, alongside its not-yet-admitted
	// data.
	pendings := make(pendingsByKey, len(reply.RRsets))
	for i, fr := range reply.RRsets {
		pendings[i] = pendingAdmission{ref: rrset.Ref{Key: fr.Key}, data: fr.Data}
	}

	// Step 2: sort into the total stable key order of §5 — via
	// github.com/twotwotwo/sorts, the teacher's own sorting dependency
	// (_examples/johanix-tdns/tdns/dnsutils.go's `sorts.Quicksort`) —
	// before any further step depends on it.
	sorts.Quicksort(pendings)

	finalRefs := make([]rrset.Ref, len(pendings))
	for i, p := range pendings {
		// Step 3: normalize this RRset's TTLs to absolute.
		absolute := p.data.ToAbsolute(now)

		// Step 4: admit into the RRset cache; if a cached incumbent
		// wins (higher trust, or equal trust and a TTL at least as
		// large), reference it instead.
		ref, _ := e.RRsets.Update(p.ref.Key, absolute)
		finalRefs[i] = ref
	}

	if reply.TTL == 0 {
		// RRsets are still admitted above for reuse as delegation glue
		// (spec.md §4.4 step 5); the reply itself is not cached.
		return
	}

	// Step 6: insert the reply-info into the message cache. Its refs
	// are already in the sorted order established at step 2
	// (invariant 1: "references are in total key order").
	info := &ReplyInfo{
		Flags:       reply.Flags,
		Qdcount:     reply.Qdcount,
		TTLAbsolute: rrset.SaturatingAdd(now, reply.TTL),
		AnCount:     reply.AnCount,
		NsCount:     reply.NsCount,
		ArCount:     reply.ArCount,
		Refs:        finalRefs,
	}
	e.Msgs.Store(qi, info)
}
