package zone

import (
	"sync"

	"github.com/dnscore/dnscored/internal/wire"
)

// Store holds every zone this engine is authoritative for, keyed by
// origin, and resolves a query name to the zone with the longest matching
// suffix (spec §4.3).
type Store struct {
	mu    sync.RWMutex
	zones map[string]*Zone
}

// NewStore creates an empty zone store.
func NewStore() *Store {
	return &Store{zones: make(map[string]*Zone)}
}

// AddZone registers z, replacing any existing zone with the same origin.
func (s *Store) AddZone(z *Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[z.Origin] = z
}

// RemoveZone deletes the zone rooted at origin, if present.
func (s *Store) RemoveZone(origin string) {
	origin = wire.CanonicalName(origin)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.zones, origin)
}

// Zone returns the zone registered at the given origin, if any.
func (s *Store) Zone(origin string) (*Zone, bool) {
	origin = wire.CanonicalName(origin)
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[origin]
	return z, ok
}

// Match returns the zone whose origin is the longest suffix of qname, i.e.
// the zone that is authoritative for qname. Among zones stored, the one
// with the most labels wins. Returns nil if no registered zone covers
// qname.
func (s *Store) Match(qname string) *Zone {
	qname = wire.CanonicalName(qname)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Zone
	bestLen := -1
	for origin, z := range s.zones {
		if !isSubdomain(origin, qname) {
			continue
		}
		if len(origin) > bestLen {
			best, bestLen = z, len(origin)
		}
	}
	return best
}

// Origins returns the origin of every registered zone.
func (s *Store) Origins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.zones))
	for origin := range s.zones {
		out = append(out, origin)
	}
	return out
}

// Stats summarizes the store's contents for operational reporting.
type Stats struct {
	ZoneCount   int
	RecordCount int
}

// Stats reports aggregate counters across all registered zones.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{ZoneCount: len(s.zones)}
	for _, z := range s.zones {
		st.RecordCount += len(z.AllRecords())
	}
	return st
}

// MustAddZone is a convenience for startup code building zones inline; it
// panics if origin is empty (the caller controls origin and a failure
// here indicates a programming error, not runtime input).
func (s *Store) MustAddZone(origin string) *Zone {
	if origin == "" {
		panic("zone: empty origin")
	}
	z := New(origin)
	s.AddZone(z)
	return z
}
