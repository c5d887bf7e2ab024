package cache

import (
	"container/list"
	"log"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/dnsresolver/rescache/rrset"
)

// RRsetRef is one entry in a reply-info's RRset reference vector: a
// pointer to the shared RRset key plus the id that key had when the
// reference was captured (spec.md §3 "Reply-info").
type RRsetRef = rrset.Ref

// ReplyInfo is a cached reply (spec.md §3 "Reply-info"): DNS header
// flags, qdcount, overall absolute TTL, section counts, and an ordered
// vector of RRset references. Refs must be sorted by the total stable
// key order of spec.md §5 before being stored (invariant 1);
// Env.StoreMsg does this (cache/writer.go) before calling
// MsgCache.Store, which does not sort.
type ReplyInfo struct {
	Flags       uint16
	Qdcount     uint16
	TTLAbsolute uint32
	AnCount     uint16
	NsCount     uint16
	ArCount     uint16
	Refs        []RRsetRef
}

type msgEntry struct {
	mu      sync.RWMutex
	key     string
	info    *ReplyInfo
	lruElem *list.Element
}

// MsgCache is C4: same shape as C2 (sharded LRU hash), keyed by
// query-info, value reply-info, with per-entry lock. No trust-rank
// comparison; insertions overwrite (spec.md §4.3). The eviction
// callback frees the reply-info but never the RRsets it references,
// since those are shared with the RRset cache (spec.md §4.3).
type MsgCache struct {
	m          cmap.ConcurrentMap[string, *msgEntry]
	lruMu      sync.Mutex
	lru        *list.List
	bytes      int
	byteBudget int
	logger     *log.Logger
}

// DefaultMsgBudget is used when NewMsgCache is given a non-positive
// budget.
const DefaultMsgBudget = 2 << 20 // 2 MiB

func NewMsgCache(byteBudget int, logger *log.Logger) *MsgCache {
	if byteBudget <= 0 {
		byteBudget = DefaultMsgBudget
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MsgCache{
		m:          cmap.New[*msgEntry](),
		lru:        list.New(),
		byteBudget: byteBudget,
		logger:     logger,
	}
}

func replySize(info *ReplyInfo) int {
	const fixed = 2 + 2 + 4 + 2 + 2 + 2
	return fixed + len(info.Refs)*24
}

// Store unconditionally overwrites any existing entry for qi (spec.md
// §4.3: "No trust-rank comparison; insertions overwrite").
func (c *MsgCache) Store(qi rrset.QueryInfo, info *ReplyInfo) {
	key := qi.String()
	size := replySize(info)

	for {
		if existing, ok := c.m.Get(key); ok {
			existing.mu.Lock()
			oldSize := replySize(existing.info)
			existing.info = info
			existing.mu.Unlock()

			c.lruMu.Lock()
			c.bytes += size - oldSize
			c.lruMu.Unlock()
			c.touchLRU(existing)
			c.evictIfOverBudget()
			return
		}
		e := &msgEntry{key: key, info: info}
		if !c.m.SetIfAbsent(key, e) {
			continue
		}
		c.lruMu.Lock()
		e.lruElem = c.lru.PushFront(e)
		c.bytes += size
		c.lruMu.Unlock()
		c.evictIfOverBudget()
		return
	}
}

// LockedReply is a read-locked view of a cached reply, returned by
// Lookup. Callers must call Release exactly once.
type LockedReply struct {
	entry *msgEntry
}

func (l *LockedReply) Info() *ReplyInfo { return l.entry.info }

func (l *LockedReply) Release() {
	if l == nil || l.entry == nil {
		return
	}
	l.entry.mu.RUnlock()
}

// Lookup returns the reply-info for qi, read-locked, or nil on miss.
// Freshness (TTL expiry) is the caller's responsibility (spec.md §4.6a
// checks the reply's own TTL after acquiring RRset locks, not here),
// since staleness here is about the message-cache entry's existence,
// not yet about whether its referenced RRsets are still valid.
func (c *MsgCache) Lookup(qi rrset.QueryInfo) *LockedReply {
	e, ok := c.m.Get(qi.String())
	if !ok {
		return nil
	}
	e.mu.RLock()
	c.touchLRU(e)
	return &LockedReply{entry: e}
}

// Len reports the number of cached replies, for tests and diagnostics.
func (c *MsgCache) Len() int {
	return c.m.Count()
}

func (c *MsgCache) touchLRU(e *msgEntry) {
	c.lruMu.Lock()
	if e.lruElem != nil {
		c.lru.MoveToFront(e.lruElem)
	} else {
		e.lruElem = c.lru.PushFront(e)
	}
	c.lruMu.Unlock()
}

func (c *MsgCache) evictIfOverBudget() {
	for {
		c.lruMu.Lock()
		if c.bytes <= c.byteBudget {
			c.lruMu.Unlock()
			return
		}
		back := c.lru.Back()
		if back == nil {
			c.lruMu.Unlock()
			return
		}
		victim := back.Value.(*msgEntry)
		c.lru.Remove(back)
		victim.mu.RLock()
		size := replySize(victim.info)
		victim.mu.RUnlock()
		c.bytes -= size
		c.lruMu.Unlock()

		c.m.Remove(victim.key)
	}
}
