package zone

import (
	"net"

	"github.com/dnscore/dnscored/internal/rrtype"
	"github.com/dnscore/dnscored/internal/wire"
)

// Builder offers a fluent API for assembling a Zone in Go code, mirroring
// the programmatic construction path that config-driven startup code and
// tests both want without round-tripping through YAML.
type Builder struct {
	zone *Zone
	ttl  uint32
	err  error
}

// NewBuilder starts a Builder for a zone rooted at origin with the given
// default TTL, applied to any record added without an explicit TTL.
func NewBuilder(origin string, defaultTTL uint32) *Builder {
	return &Builder{zone: New(origin), ttl: defaultTTL}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// SOA sets the zone's SOA record at the apex.
func (b *Builder) SOA(mname, rname string, serial, refresh, retry, expire, minimum uint32) *Builder {
	if b.err != nil {
		return b
	}
	soa := rrtype.SOA{
		MName:   mname,
		RName:   rname,
		Serial:  serial,
		Refresh: refresh,
		Retry:   retry,
		Expire:  expire,
		Minimum: minimum,
	}
	return b.add(b.zone.Origin, wire.TypeSOA, b.ttl, soa)
}

// A adds an A record at owner.
func (b *Builder) A(owner, addr string) *Builder {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return b.fail(&net.ParseError{Type: "IPv4 address", Text: addr})
	}
	return b.add(owner, wire.TypeA, b.ttl, rrtype.A{Address: ip.To4()})
}

// AAAA adds an AAAA record at owner.
func (b *Builder) AAAA(owner, addr string) *Builder {
	rec, err := rrtype.NewAAAAFromString(addr)
	if err != nil {
		return b.fail(err)
	}
	return b.add(owner, wire.TypeAAAA, b.ttl, rec)
}

// CNAME adds a CNAME record at owner pointing to target.
func (b *Builder) CNAME(owner, target string) *Builder {
	return b.add(owner, wire.TypeCNAME, b.ttl, rrtype.CNAME{Target: target})
}

// NS adds an NS record at owner delegating to target.
func (b *Builder) NS(owner, target string) *Builder {
	return b.add(owner, wire.TypeNS, b.ttl, rrtype.NS{Target: target})
}

// PTR adds a PTR record at owner pointing to target.
func (b *Builder) PTR(owner, target string) *Builder {
	return b.add(owner, wire.TypePTR, b.ttl, rrtype.PTR{Target: target})
}

// MX adds an MX record at owner.
func (b *Builder) MX(owner string, preference uint16, exchange string) *Builder {
	return b.add(owner, wire.TypeMX, b.ttl, rrtype.MX{Preference: preference, Exchange: exchange})
}

// TXT adds a TXT record at owner with the given character-strings.
func (b *Builder) TXT(owner string, strings ...string) *Builder {
	return b.add(owner, wire.TypeTXT, b.ttl, rrtype.TXT{Strings: strings})
}

// HINFO adds a HINFO record at owner.
func (b *Builder) HINFO(owner, cpu, os string) *Builder {
	return b.add(owner, wire.TypeHINFO, b.ttl, rrtype.HINFO{CPU: cpu, OS: os})
}

// TTL overrides the builder's default TTL for subsequently added records.
func (b *Builder) TTL(ttl uint32) *Builder {
	b.ttl = ttl
	return b
}

func (b *Builder) add(owner string, rrType uint16, ttl uint32, data rrtype.RData) *Builder {
	if b.err != nil {
		return b
	}
	rec := Record{
		Name:  owner,
		Type:  rrType,
		Class: wire.ClassIN,
		TTL:   ttl,
		RData: data,
	}
	if err := b.zone.AddRecord(rec); err != nil {
		return b.fail(err)
	}
	return b
}

// Build returns the assembled zone, or the first error encountered while
// adding records.
func (b *Builder) Build() (*Zone, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.zone, nil
}

// MustBuild is Build but panics on error; useful for static zone data
// defined in startup code where a failure is a programming error.
func (b *Builder) MustBuild() *Zone {
	z, err := b.Build()
	if err != nil {
		panic(err)
	}
	return z
}
