// Package cache implements the cache read/write path and referral-
// synthesis logic of a validating, recursive DNS resolver (spec.md
// §1-§2): the RRset cache (C2), message cache (C4), cache writer (C5),
// cache reader (C6), and delegation finder (C7), all built atop the
// arena (C3) and packed-RRset (C1) primitives in the sibling `arena`
// and `rrset` packages.
package cache

import (
	"log"
)

// Env is the cache environment: a handle bundling the two caches and
// their shared configuration, passed explicitly to every operation
// (spec.md §9 "Global state": "there is no hidden singleton").
// Grounded on _examples/johanix-tdns/tdns/cache/cache_structs.go's
// RRsetCacheT, whose Logger/Verbose/Debug fields this mirrors (the
// teacher's Quiet field has no counterpart here); the live resolver-state fields of the teacher (ServerMap,
// ZoneMap, DnskeyCache, DNSClient) are iterative-resolution/transport
// state and are out of scope per spec.md's Non-goals.
type Env struct {
	RRsets *RRsetCache
	Msgs   *MsgCache

	// RootHints seeds the delegation finder (C7) with a last-resort
	// zone when no NS RRset is cached anywhere up to the root; see
	// SPEC_FULL.md's C7 expansion and cache/roothints.go.
	RootHints *RootHints

	Logger  *log.Logger
	Verbose bool
	Debug   bool
}

// NewEnv constructs a cache environment with the given per-cache byte
// budgets. A nil logger defaults to log.Default(), matching the
// teacher's convention of never requiring a caller to wire a logger
// before the cache can be used. RootHints is primed from
// CompiledInRootHintsZone so FindDelegation's root-hints fallback works
// out of the box (mirroring _examples/johanix-tdns/tdns/imr_helpers.go's
// PrimeWithHints); a malformed zone string here would be a programmer
// error, so parse failures are logged rather than propagated.
func NewEnv(rrsetBudget, msgBudget int, logger *log.Logger) *Env {
	if logger == nil {
		logger = log.Default()
	}
	e := &Env{
		RRsets: NewRRsetCache(rrsetBudget, logger),
		Msgs:   NewMsgCache(msgBudget, logger),
		Logger: logger,
	}
	if rh, err := ParseRootHints(CompiledInRootHintsZone); err == nil {
		e.RootHints = rh
	} else {
		logger.Printf("cache: failed to parse compiled-in root hints: %v", err)
	}
	return e
}

func (e *Env) logf(format string, args ...any) {
	if e == nil || e.Logger == nil || !e.Debug {
		return
	}
	e.Logger.Printf(format, args...)
}
