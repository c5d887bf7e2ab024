package rrset_test

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsresolver/rescache/rrset"
)

func aRR(t *testing.T, owner, ip string, ttl uint32) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(owner + " " + itoa(ttl) + " IN A " + ip)
	require.NoError(t, err)
	return rr
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	digits := []byte{}
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

func TestNewFromWireAbsoluteTTL(t *testing.T) {
	rr := aRR(t, "www.example.com.", "1.2.3.4", 60)
	p := rrset.NewFromWire([]dns.RR{rr}, nil, 1000, rrset.TrustAnsAA, rrset.SecurityUnchecked)

	assert.Equal(t, uint32(1060), p.TTLAbsolute)
	assert.False(t, p.Expired(1059))
	assert.True(t, p.Expired(1060))
	assert.Equal(t, uint32(30), p.TTLRelative(1030))
}

func TestSetTTLIsMinOfPerRR(t *testing.T) {
	rr1 := aRR(t, "example.com.", "1.1.1.1", 100)
	rr2 := aRR(t, "example.com.", "2.2.2.2", 40)
	p := rrset.NewFromWire([]dns.RR{rr1, rr2}, nil, 0, rrset.TrustAnsAA, rrset.SecurityUnchecked)
	assert.Equal(t, uint32(40), p.TTLAbsolute)
}

func TestWithTTLRelativeRoundTrip(t *testing.T) {
	rr := aRR(t, "www.example.com.", "1.2.3.4", 60)
	p := rrset.NewFromWire([]dns.RR{rr}, nil, 1000, rrset.TrustAnsAA, rrset.SecurityUnchecked)

	out := p.WithTTLRelative(1030)
	require.Len(t, out.RRs(), 1)
	assert.Equal(t, uint32(30), out.RRs()[0].Header().Ttl)
}

func TestWithTTLRelativeSaturatesAtZero(t *testing.T) {
	rr := aRR(t, "www.example.com.", "1.2.3.4", 60)
	p := rrset.NewFromWire([]dns.RR{rr}, nil, 1000, rrset.TrustAnsAA, rrset.SecurityUnchecked)

	out := p.WithTTLRelative(5000) // long past expiration
	assert.Equal(t, uint32(0), out.RRs()[0].Header().Ttl)
}

func TestTrustRankOrdering(t *testing.T) {
	assert.True(t, rrset.TrustNone < rrset.TrustAddNoAA)
	assert.True(t, rrset.TrustGlue < rrset.TrustAuthAA)
	assert.True(t, rrset.TrustValidated < rrset.TrustUltimate)
}

func TestCNAMETarget(t *testing.T) {
	rr, err := dns.NewRR("old.example. 60 IN CNAME new.example.")
	require.NoError(t, err)
	p := rrset.NewFromWire([]dns.RR{rr}, nil, 0, rrset.TrustAnsNoAA, rrset.SecurityUnchecked)

	target, ok := rrset.CNAMETarget(p)
	require.True(t, ok)
	assert.Equal(t, "new.example.", target)
}

func TestSizeofGrowsWithRRs(t *testing.T) {
	rr := aRR(t, "www.example.com.", "1.2.3.4", 60)
	one := rrset.NewFromWire([]dns.RR{rr}, nil, 0, rrset.TrustAnsAA, rrset.SecurityUnchecked)

	rr2 := aRR(t, "www.example.com.", "5.6.7.8", 60)
	two := rrset.NewFromWire([]dns.RR{rr, rr2}, nil, 0, rrset.TrustAnsAA, rrset.SecurityUnchecked)

	assert.Greater(t, two.Sizeof(), one.Sizeof())
}

func TestKeyEqualityAndHash(t *testing.T) {
	k1 := rrset.Key{Dname: "WWW.Example.Com.", Type: dns.TypeA, Class: dns.ClassINET}
	k2 := rrset.Key{Dname: "www.example.com.", Type: dns.TypeA, Class: dns.ClassINET}
	assert.True(t, k1.Equal(k2))
	assert.Equal(t, k1.Hash(), k2.Hash())

	k3 := rrset.Key{Dname: "www.example.com.", Type: dns.TypeAAAA, Class: dns.ClassINET}
	assert.False(t, k1.Equal(k3))
}
