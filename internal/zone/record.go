// Package zone implements the in-memory authoritative Zone and multi-zone
// Zone Store described in spec §4.3, indexed by owner name with
// longest-suffix zone selection.
package zone

import (
	"github.com/dnscore/dnscored/internal/rrtype"
	"github.com/dnscore/dnscored/internal/wire"
)

// Record is a resource record stored in a Zone: an owner name, type, class,
// TTL, and typed RDATA.
type Record struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32
	RData rrtype.RData
}

// ToWireRR converts a Record to the opaque-RDATA form the wire codec frames.
func (r Record) ToWireRR() wire.RR {
	return wire.RR{
		Name:  r.Name,
		Type:  r.Type,
		Class: r.Class,
		TTL:   r.TTL,
		RData: r.RData.Encode(),
	}
}
