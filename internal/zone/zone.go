package zone

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dnscore/dnscored/internal/rrtype"
	"github.com/dnscore/dnscored/internal/wire"
)

// Zone is a contiguous portion of the DNS tree administered as a unit,
// rooted at Origin and described by an SOA (spec §3).
type Zone struct {
	Origin string
	SOA    *rrtype.SOA

	mu      sync.RWMutex
	records map[string][]Record // owner (canonical) -> ordered RRs
}

// New creates an empty zone rooted at origin.
func New(origin string) *Zone {
	return &Zone{
		Origin:  wire.CanonicalName(origin),
		records: make(map[string][]Record),
	}
}

// isSubdomain reports whether name is origin or a descendant of origin,
// label-wise and case-insensitively.
func isSubdomain(origin, name string) bool {
	origin = strings.TrimSuffix(wire.CanonicalName(origin), ".")
	name = strings.TrimSuffix(wire.CanonicalName(name), ".")
	if origin == "" {
		return true // root zone covers everything
	}
	if name == origin {
		return true
	}
	return strings.HasSuffix(name, "."+origin)
}

// AddRecord adds a resource record to the zone. The owner must equal or
// descend from the zone's origin (spec §3 invariant).
func (z *Zone) AddRecord(r Record) error {
	r.Name = wire.CanonicalName(r.Name)

	if !isSubdomain(z.Origin, r.Name) {
		return fmt.Errorf("zone: owner %q is not in zone %q", r.Name, z.Origin)
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	z.records[r.Name] = append(z.records[r.Name], r)

	if r.Type == wire.TypeSOA {
		if soa, ok := r.RData.(rrtype.SOA); ok {
			z.SOA = &soa
		}
	}

	return nil
}

// Lookup returns all RRs at owner whose type and class match. An empty
// result is not an error (spec §4.3): wildcard expansion and ANY expansion
// are explicit non-goals at this layer.
func (z *Zone) Lookup(owner string, rrType, class uint16) []Record {
	owner = wire.CanonicalName(owner)

	z.mu.RLock()
	defer z.mu.RUnlock()

	var out []Record
	for _, r := range z.records[owner] {
		if r.Type == rrType && r.Class == class {
			out = append(out, r)
		}
	}
	return out
}

// LookupAny returns every RR stored at owner, regardless of type, provided
// the class matches.
func (z *Zone) LookupAny(owner string, class uint16) []Record {
	owner = wire.CanonicalName(owner)

	z.mu.RLock()
	defer z.mu.RUnlock()

	var out []Record
	for _, r := range z.records[owner] {
		if r.Class == class {
			out = append(out, r)
		}
	}
	return out
}

// HasOwner reports whether the zone stores any record at owner.
func (z *Zone) HasOwner(owner string) bool {
	owner = wire.CanonicalName(owner)

	z.mu.RLock()
	defer z.mu.RUnlock()

	_, ok := z.records[owner]
	return ok
}

// DelegationAt returns the NS records at the nearest delegation point
// covering qname within the zone's own namespace, along with that point's
// owner name. A delegation point is an owner strictly below the zone's
// apex that carries NS records; the zone holds glue for it but is not
// itself authoritative for anything underneath it (spec §4.4 case 2).
// Returns nil, "" if qname is not covered by any such cut, i.e. the zone
// itself is authoritative for qname.
func (z *Zone) DelegationAt(qname string) ([]Record, string) {
	qname = wire.CanonicalName(qname)
	origin := strings.TrimSuffix(z.Origin, ".")

	if !isSubdomain(z.Origin, qname) || qname == z.Origin {
		return nil, ""
	}

	labels := strings.Split(strings.TrimSuffix(qname, "."), ".")
	for i := 0; i < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".")
		if candidate == origin {
			break
		}
		owner := candidate + "."
		if ns := z.Lookup(owner, wire.TypeNS, wire.ClassIN); len(ns) > 0 {
			return ns, owner
		}
	}
	return nil, ""
}

// AllRecords returns a snapshot of every record in the zone.
func (z *Zone) AllRecords() []Record {
	z.mu.RLock()
	defer z.mu.RUnlock()

	var out []Record
	for _, rrs := range z.records {
		out = append(out, rrs...)
	}
	return out
}
