// Command cachedemo drives the RRset cache, message cache, cache
// writer, cache reader, and delegation finder against a handful of
// in-process dns.RR values, with no network I/O, so the library can be
// exercised without a full resolver around it.
package main

import (
	"flag"
	"fmt"
	"net"

	"github.com/miekg/dns"
	"golang.org/x/exp/rand"

	arenapkg "github.com/dnsresolver/rescache/arena"
	"github.com/dnsresolver/rescache/cache"
	"github.com/dnsresolver/rescache/rrset"
)

func main() {
	logfile := flag.String("logfile", "", "rotated log file (empty: log to stderr)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := setupLogging(*logfile)
	env := cache.NewEnv(cache.DefaultRRsetBudget, cache.DefaultMsgBudget, logger)
	env.Debug = *debug

	now := uint32(1_000_000)

	storeAExample(env, now)
	demoExactHit(env, now)

	storeDNAMEExample(env, now)
	demoDNAMESynthesis(env, now)

	storeDelegationFixtures(env, now)
	demoDelegation(env, now)
}

// jitterTTL spreads a base TTL by up to ±10%, the way a resolver seeds
// varied expiry times for demo fixtures instead of every record
// expiring in lockstep; grounded on the teacher's own
// golang.org/x/exp/rand usage for signature jitter (tdns/sign.go).
func jitterTTL(base uint32) uint32 {
	spread := int32(base) / 10
	if spread <= 0 {
		return base
	}
	delta := rand.Int31n(2*spread+1) - spread
	result := int32(base) + delta
	if result < 1 {
		return 1
	}
	return uint32(result)
}

func storeAExample(env *cache.Env, now uint32) {
	qi := rrset.QueryInfo{Qname: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET}
	aRR := &dns.A{
		Hdr: dns.RR_Header{Name: "www.example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: jitterTTL(60)},
		A:   netIP4(1, 2, 3, 4),
	}
	packed := rrset.NewFromWire([]dns.RR{aRR}, nil, 0, rrset.TrustAnsAA, rrset.SecuritySecure)

	reply := &cache.FreshReply{
		Flags:   cache.FlagQR | cache.FlagAA,
		Qdcount: 1,
		TTL:     aRR.Hdr.Ttl,
		AnCount: 1,
		RRsets: []cache.FreshRRset{
			{Key: rrset.Key{Dname: "www.example.com.", Type: dns.TypeA, Class: dns.ClassINET}, Data: packed},
		},
	}
	env.StoreMsg(qi, reply, now)
}

func demoExactHit(env *cache.Env, now uint32) {
	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	reply := env.Lookup("www.example.com.", dns.TypeA, dns.ClassINET, now+30, a, scratch)
	if reply == nil {
		fmt.Println("exact hit: miss (unexpected)")
		return
	}
	fmt.Printf("exact hit: rcode=%d rrsets=%d\n", reply.Rcode, len(reply.RRsets))
}

func storeDNAMEExample(env *cache.Env, now uint32) {
	qi := rrset.QueryInfo{Qname: "old.example.", Qtype: dns.TypeDNAME, Qclass: dns.ClassINET}
	dnameRR := &dns.DNAME{
		Hdr:    dns.RR_Header{Name: "old.example.", Rrtype: dns.TypeDNAME, Class: dns.ClassINET, Ttl: 100},
		Target: "new.example.",
	}
	packed := rrset.NewFromWire([]dns.RR{dnameRR}, nil, 0, rrset.TrustAnsAA, rrset.SecuritySecure)

	reply := &cache.FreshReply{
		Flags:   cache.FlagQR | cache.FlagAA,
		Qdcount: 1,
		TTL:     0, // synthetic synonym records aren't cached as messages themselves
		AnCount: 1,
		RRsets: []cache.FreshRRset{
			{Key: rrset.Key{Dname: "old.example.", Type: dns.TypeDNAME, Class: dns.ClassINET}, Data: packed},
		},
	}
	env.StoreMsg(qi, reply, now)
}

func demoDNAMESynthesis(env *cache.Env, now uint32) {
	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	reply := env.Lookup("host.old.example.", dns.TypeA, dns.ClassINET, now+50, a, scratch)
	if reply == nil {
		fmt.Println("dname synthesis: miss (unexpected)")
		return
	}
	fmt.Printf("dname synthesis: rcode=%d rrsets=%d\n", reply.Rcode, len(reply.RRsets))
}

func storeDelegationFixtures(env *cache.Env, now uint32) {
	store := func(owner string, t uint16, rr dns.RR, trust rrset.TrustRank) {
		qi := rrset.QueryInfo{Qname: owner, Qtype: t, Qclass: dns.ClassINET}
		packed := rrset.NewFromWire([]dns.RR{rr}, nil, 0, trust, rrset.SecurityUnchecked)
		reply := &cache.FreshReply{
			Flags:   cache.FlagQR | cache.FlagAA,
			Qdcount: 1,
			TTL:     rr.Header().Ttl,
			AnCount: 1,
			RRsets: []cache.FreshRRset{
				{Key: rrset.Key{Dname: owner, Type: t, Class: dns.ClassINET}, Data: packed},
			},
		}
		env.StoreMsg(qi, reply, now)
	}

	store("example.com.", dns.TypeNS, &dns.NS{
		Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 3600},
		Ns:  "ns1.example.com.",
	}, rrset.TrustAuthAA)

	store("ns1.example.com.", dns.TypeA, &dns.A{
		Hdr: dns.RR_Header{Name: "ns1.example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 3600},
		A:   netIP4(192, 0, 2, 1),
	}, rrset.TrustGlue)
}

func demoDelegation(env *cache.Env, now uint32) {
	a := arenapkg.New(0)
	scratch := arenapkg.New(0)
	dp, reply := env.FindDelegation("www.foo.example.com.", dns.TypeA, dns.ClassINET, now+10, a, scratch, true)
	if dp == nil {
		fmt.Println("delegation: none found (unexpected)")
		return
	}
	fmt.Printf("delegation: zone=%s nameservers=%d reply_present=%v\n", dp.Zone, len(dp.Nameservers), reply != nil)
	for _, ns := range dp.Nameservers {
		fmt.Printf("  ns=%s glueA=%v glueAAAA=%v\n", ns.Name, ns.A != nil, ns.AAAA != nil)
	}
}

func netIP4(a, b, c, d byte) net.IP {
	return net.IPv4(a, b, c, d)
}
