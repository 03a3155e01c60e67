package rrtype

import (
	"fmt"
	"net"

	"github.com/dnscore/dnscored/internal/wire"
)

// A is the RDATA of an A record: a single IPv4 address (spec §3).
type A struct {
	Address net.IP
}

func (A) Type() uint16 { return wire.TypeA }

func (a A) Encode() []byte {
	ip := a.Address.To4()
	out := make([]byte, 4)
	copy(out, ip)
	return out
}

// ParseA parses a standalone 4-octet A rdata payload.
func ParseA(rdata []byte) (A, error) {
	if len(rdata) != 4 {
		return A{}, fmt.Errorf("%w: A requires exactly 4 octets, got %d", ErrInvalidRData, len(rdata))
	}
	ip := make(net.IP, 4)
	copy(ip, rdata)
	return A{Address: ip}, nil
}
