package rrtype

import (
	"fmt"

	"github.com/dnscore/dnscored/internal/wire"
)

// HINFO is the RDATA of a HINFO record: CPU and OS identification strings.
type HINFO struct {
	CPU string
	OS  string
}

func (HINFO) Type() uint16 { return wire.TypeHINFO }

func (h HINFO) Encode() []byte {
	buf := make([]byte, 0, 2+len(h.CPU)+len(h.OS))
	buf = append(buf, byte(len(h.CPU)))
	buf = append(buf, h.CPU...)
	buf = append(buf, byte(len(h.OS)))
	buf = append(buf, h.OS...)
	return buf
}

// ParseHINFO parses a HINFO rdata payload.
func ParseHINFO(rdata []byte) (HINFO, error) {
	if len(rdata) < 1 {
		return HINFO{}, fmt.Errorf("%w: HINFO requires a CPU character-string", ErrInvalidRData)
	}
	cpuLen := int(rdata[0])
	if 1+cpuLen > len(rdata) {
		return HINFO{}, fmt.Errorf("%w: HINFO CPU string exceeds rdata bounds", ErrInvalidRData)
	}
	cpu := string(rdata[1 : 1+cpuLen])

	rest := rdata[1+cpuLen:]
	if len(rest) < 1 {
		return HINFO{}, fmt.Errorf("%w: HINFO requires an OS character-string", ErrInvalidRData)
	}
	osLen := int(rest[0])
	if 1+osLen > len(rest) {
		return HINFO{}, fmt.Errorf("%w: HINFO OS string exceeds rdata bounds", ErrInvalidRData)
	}
	os := string(rest[1 : 1+osLen])

	return HINFO{CPU: cpu, OS: os}, nil
}
