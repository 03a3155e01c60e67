package rrtype

import (
	"fmt"

	"github.com/dnscore/dnscored/internal/wire"
)

// AAAA is the RDATA of an AAAA record: a single IPv6 address (RFC 3596).
type AAAA struct {
	Address [16]byte
}

func (AAAA) Type() uint16 { return wire.TypeAAAA }

func (a AAAA) Encode() []byte {
	out := make([]byte, 16)
	copy(out, a.Address[:])
	return out
}

// String renders the address in canonical textual form (spec §4.2).
func (a AAAA) String() string {
	return formatIPv6(a.Address)
}

// ParseAAAA parses a standalone 16-octet AAAA rdata payload.
func ParseAAAA(rdata []byte) (AAAA, error) {
	if len(rdata) != 16 {
		return AAAA{}, fmt.Errorf("%w: AAAA requires exactly 16 octets, got %d", ErrInvalidRData, len(rdata))
	}
	var a AAAA
	copy(a.Address[:], rdata)
	return a, nil
}

// NewAAAAFromString builds an AAAA record from textual IPv6 notation.
func NewAAAAFromString(s string) (AAAA, error) {
	addr, err := parseIPv6(s)
	if err != nil {
		return AAAA{}, err
	}
	return AAAA{Address: addr}, nil
}
