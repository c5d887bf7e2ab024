package rrset

// TrustRank is an ordered enum expressing an RRset's provenance
// strength; it governs cache overwrite in the RRset cache's Update
// (spec.md §4.2). Values are strictly increasing in the order listed
// in spec.md §3.
type TrustRank uint8

const (
	TrustNone TrustRank = iota
	TrustAddNoAA
	TrustAuthNoAA
	TrustAddAA
	TrustNonauthAnsAA
	TrustAnsNoAA
	TrustGlue
	TrustAuthAA
	TrustAnsAA
	TrustSecNoglue
	TrustPrimNoglue
	TrustValidated
	TrustUltimate
)

var trustNames = map[TrustRank]string{
	TrustNone:         "none",
	TrustAddNoAA:      "add_noAA",
	TrustAuthNoAA:     "auth_noAA",
	TrustAddAA:        "add_AA",
	TrustNonauthAnsAA: "nonauth_ans_AA",
	TrustAnsNoAA:      "ans_noAA",
	TrustGlue:         "glue",
	TrustAuthAA:       "auth_AA",
	TrustAnsAA:        "ans_AA",
	TrustSecNoglue:    "sec_noglue",
	TrustPrimNoglue:   "prim_noglue",
	TrustValidated:    "validated",
	TrustUltimate:     "ultimate",
}

func (t TrustRank) String() string {
	if s, ok := trustNames[t]; ok {
		return s
	}
	return "unknown"
}
