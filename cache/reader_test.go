package cache

import (
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arenapkg "github.com/dnsresolver/rescache/arena"
	"github.com/dnsresolver/rescache/rrset"
)

func storeSimpleA(env *Env, owner string, ttl uint32, addr string, now uint32) {
	data := aPacked(owner, ttl, rrset.TrustAnsAA, addr)
	reply := &FreshReply{
		Flags:   FlagQR | FlagAA,
		AnCount: 1,
		TTL:     ttl,
		RRsets:  []FreshRRset{{Key: rrset.Key{Dname: owner, Type: dns.TypeA, Class: dns.ClassINET}, Data: data}},
	}
	env.StoreMsg(rrset.QueryInfo{Qname: owner, Qtype: dns.TypeA, Qclass: dns.ClassINET}, reply, now)
}

func TestLookupExactHitTTLCountsDown(t *testing.T) {
	env := NewEnv(0, 0, nil)
	storeSimpleA(env, "www.example.com.", 60, "1.2.3.4", 1000)

	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	reply := env.Lookup("www.example.com.", dns.TypeA, dns.ClassINET, 1030, a, scratch)
	require.NotNil(t, reply)
	require.Len(t, reply.RRsets, 1)
	assert.Equal(t, uint32(30), reply.RRsets[0].TTLRelative(1030))
}

func TestLookupExactHitMissAfterExpiry(t *testing.T) {
	env := NewEnv(0, 0, nil)
	storeSimpleA(env, "www.example.com.", 60, "1.2.3.4", 1000)

	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	reply := env.Lookup("www.example.com.", dns.TypeA, dns.ClassINET, 1061, a, scratch)
	assert.Nil(t, reply)
}

func storeDNAME(env *Env, owner, target string, ttl uint32, now uint32) {
	rr := &dns.DNAME{
		Hdr:    dns.RR_Header{Name: owner, Rrtype: dns.TypeDNAME, Class: dns.ClassINET, Ttl: ttl},
		Target: target,
	}
	data := rrset.NewFromWire([]dns.RR{rr}, nil, 0, rrset.TrustAnsAA, rrset.SecuritySecure)
	reply := &FreshReply{TTL: 0, RRsets: []FreshRRset{{Key: rrset.Key{Dname: owner, Type: dns.TypeDNAME, Class: dns.ClassINET}, Data: data}}}
	env.StoreMsg(rrset.QueryInfo{Qname: owner, Qtype: dns.TypeDNAME, Qclass: dns.ClassINET}, reply, now)
}

func TestLookupDNAMESynthesizesCNAME(t *testing.T) {
	env := NewEnv(0, 0, nil)
	storeDNAME(env, "old.example.", "new.example.", 100, 0)

	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	reply := env.Lookup("host.old.example.", dns.TypeA, dns.ClassINET, 50, a, scratch)
	require.NotNil(t, reply)
	assert.Equal(t, dns.RcodeSuccess, reply.Rcode)
	require.Len(t, reply.RRsets, 2)

	cname, ok := reply.RRsets[1].RRs()[0].(*dns.CNAME)
	require.True(t, ok)
	assert.Equal(t, "host.old.example.", cname.Hdr.Name)
	assert.Equal(t, "host.new.example.", cname.Target)
	assert.Equal(t, uint32(0), reply.RRsets[1].TTLRelative(50))
}

func TestLookupDNAMEOverflowYieldsYXDomain(t *testing.T) {
	env := NewEnv(0, 0, nil)
	// Target long enough that prefixing any non-trivial qname overflows 255 octets.
	longTarget := strings.Repeat("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.", 7) + "example."
	storeDNAME(env, "old.example.", longTarget, 100, 0)

	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	qname := "some-long-label-to-push-us-over-the-line.old.example."
	reply := env.Lookup(qname, dns.TypeA, dns.ClassINET, 50, a, scratch)
	require.NotNil(t, reply)
	assert.Equal(t, dns.RcodeYXDomain, reply.Rcode)
	require.Len(t, reply.RRsets, 1, "overflow reply carries the DNAME only, no CNAME")
}

func TestLookupCNAMEDirect(t *testing.T) {
	env := NewEnv(0, 0, nil)
	rr := &dns.CNAME{
		Hdr:    dns.RR_Header{Name: "alias.example.", Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 60},
		Target: "target.example.",
	}
	data := rrset.NewFromWire([]dns.RR{rr}, nil, 0, rrset.TrustAnsAA, rrset.SecuritySecure)
	reply := &FreshReply{TTL: 60, AnCount: 1, RRsets: []FreshRRset{{Key: rrset.Key{Dname: "alias.example.", Type: dns.TypeCNAME, Class: dns.ClassINET}, Data: data}}}
	env.StoreMsg(rrset.QueryInfo{Qname: "alias.example.", Qtype: dns.TypeA, Qclass: dns.ClassINET}, reply, 0)

	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	out := env.Lookup("alias.example.", dns.TypeA, dns.ClassINET, 30, a, scratch)
	require.NotNil(t, out)
	require.Len(t, out.RRsets, 1)
	cname, ok := out.RRsets[0].RRs()[0].(*dns.CNAME)
	require.True(t, ok)
	assert.Equal(t, "target.example.", cname.Target)
}

func TestLookupEvictionMidReadIsMiss(t *testing.T) {
	env := NewEnv(0, 0, nil)
	storeSimpleA(env, "www.example.com.", 60, "1.2.3.4", 1000)

	qi := rrset.QueryInfo{Qname: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET}
	lm := env.Msgs.Lookup(qi)
	require.NotNil(t, lm)
	refs := lm.Info().Refs
	lm.Release()
	require.Len(t, refs, 1)

	// Force the referenced RRset's id to change, simulating a
	// replacement that happens between the message-cache lookup and
	// the multi-lock acquisition.
	env.RRsets.Update(refs[0].Key, aPacked("www.example.com.", 60, rrset.TrustUltimate, "9.9.9.9"))

	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	reply := env.Lookup("www.example.com.", dns.TypeA, dns.ClassINET, 1010, a, scratch)
	assert.Nil(t, reply, "an id mismatch discovered mid-read must be reported as a miss")
}
