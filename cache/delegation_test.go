package cache

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arenapkg "github.com/dnsresolver/rescache/arena"
	"github.com/dnsresolver/rescache/rrset"
)

func storeNS(env *Env, zone, nsname string, ttl uint32, now uint32) {
	rr := &dns.NS{Hdr: dns.RR_Header{Name: zone, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: ttl}, Ns: nsname}
	data := rrset.NewFromWire([]dns.RR{rr}, nil, 0, rrset.TrustAuthAA, rrset.SecurityUnchecked)
	reply := &FreshReply{TTL: ttl, RRsets: []FreshRRset{{Key: rrset.Key{Dname: zone, Type: dns.TypeNS, Class: dns.ClassINET}, Data: data}}}
	env.StoreMsg(rrset.QueryInfo{Qname: zone, Qtype: dns.TypeNS, Qclass: dns.ClassINET}, reply, now)
}

func TestFindDelegationClosestEnclosing(t *testing.T) {
	env := NewEnv(0, 0, nil)
	storeNS(env, ".", "a.root-servers.net.", 3600000, 0)
	storeNS(env, "example.com.", "ns1.example.com.", 3600, 0)
	storeSimpleA(env, "ns1.example.com.", 3600, "192.0.2.1", 0)

	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	dp, _ := env.FindDelegation("www.foo.example.com.", dns.TypeA, dns.ClassINET, 10, a, scratch, false)
	require.NotNil(t, dp)
	assert.Equal(t, "example.com.", dp.Zone, "the closest enclosing zone must win over the root")
	require.Len(t, dp.Nameservers, 1)
	assert.Equal(t, "ns1.example.com.", dp.Nameservers[0].Name)
	require.NotNil(t, dp.Nameservers[0].A, "glue must be attached when an A RRset is cached for the nameserver")
}

func TestFindDelegationBuildsReferralReply(t *testing.T) {
	env := NewEnv(0, 0, nil)
	storeNS(env, "example.com.", "ns1.example.com.", 3600, 0)
	storeSimpleA(env, "ns1.example.com.", 3600, "192.0.2.1", 0)

	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	dp, reply := env.FindDelegation("www.example.com.", dns.TypeA, dns.ClassINET, 10, a, scratch, true)
	require.NotNil(t, dp)
	require.NotNil(t, reply)
	assert.GreaterOrEqual(t, int(reply.NsCount), 1)
	assert.GreaterOrEqual(t, int(reply.ArCount), 1, "glue A record must land in the additional section")
}

func TestFindDelegationFallsBackToRootHints(t *testing.T) {
	env := NewEnv(0, 0, nil)
	// No NS RRset cached anywhere; compiled-in root hints must be used.
	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	dp, _ := env.FindDelegation("www.example.com.", dns.TypeA, dns.ClassINET, 10, a, scratch, false)
	require.NotNil(t, dp)
	assert.Equal(t, ".", dp.Zone)
	assert.NotEmpty(t, dp.Nameservers)
}

func TestFindDelegationReleasesLocksBetweenLookups(t *testing.T) {
	env := NewEnv(0, 0, nil)
	storeNS(env, "example.com.", "ns1.example.com.", 3600, 0)
	storeSimpleA(env, "ns1.example.com.", 3600, "192.0.2.1", 0)

	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	// A second, independent delegation lookup must not deadlock against
	// the first if locks were correctly released (spec.md §4.7 step 7).
	dp1, _ := env.FindDelegation("www.example.com.", dns.TypeA, dns.ClassINET, 10, a, scratch, false)
	dp2, _ := env.FindDelegation("mail.example.com.", dns.TypeA, dns.ClassINET, 10, a, scratch, false)
	require.NotNil(t, dp1)
	require.NotNil(t, dp2)
}
