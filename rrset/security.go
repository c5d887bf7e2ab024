package rrset

// Security is the DNSSEC validation status attached per RRset and
// propagated to the reply that references it (spec.md §3). Named and
// ordered after the teacher's ValidationState enum
// (_examples/johanix-tdns/tdns/cache/cache_structs.go), which this
// mirrors field-for-field under the spec's vocabulary.
type Security uint8

const (
	SecurityUnchecked Security = iota
	SecurityBogus
	SecurityIndeterminate
	SecurityInsecure
	SecuritySecure
)

var securityNames = map[Security]string{
	SecurityUnchecked:     "unchecked",
	SecurityBogus:         "bogus",
	SecurityIndeterminate: "indeterminate",
	SecurityInsecure:      "insecure",
	SecuritySecure:        "secure",
}

func (s Security) String() string {
	if n, ok := securityNames[s]; ok {
		return n
	}
	return "unknown"
}
