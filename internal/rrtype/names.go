package rrtype

import (
	"encoding/binary"
	"fmt"

	"github.com/dnscore/dnscored/internal/wire"
)

// CNAME is the RDATA of a CNAME record: a single canonical-name target.
type CNAME struct{ Target string }

func (CNAME) Type() uint16   { return wire.TypeCNAME }
func (c CNAME) Encode() []byte {
	buf, _ := wire.EncodeName(nil, c.Target)
	return buf
}

// NS is the RDATA of an NS record: a single nameserver name.
type NS struct{ Target string }

func (NS) Type() uint16 { return wire.TypeNS }
func (n NS) Encode() []byte {
	buf, _ := wire.EncodeName(nil, n.Target)
	return buf
}

// PTR is the RDATA of a PTR record: a single pointer name.
type PTR struct{ Target string }

func (PTR) Type() uint16 { return wire.TypePTR }
func (p PTR) Encode() []byte {
	buf, _ := wire.EncodeName(nil, p.Target)
	return buf
}

// MX is the RDATA of an MX record: a preference and an exchange name.
type MX struct {
	Preference uint16
	Exchange   string
}

func (MX) Type() uint16 { return wire.TypeMX }
func (m MX) Encode() []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, m.Preference)
	buf, _ = wire.EncodeName(buf, m.Exchange)
	return buf
}

func parseMX(msg []byte, offset int) (MX, error) {
	if offset+2 > len(msg) {
		return MX{}, fmt.Errorf("%w: MX requires at least 2 octets", ErrInvalidRData)
	}
	pref := binary.BigEndian.Uint16(msg[offset : offset+2])
	name, _, err := wire.DecodeName(msg, offset+2)
	if err != nil {
		return MX{}, err
	}
	return MX{Preference: pref, Exchange: name}, nil
}

// SOA is the RDATA of an SOA record: zone authority parameters.
type SOA struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (SOA) Type() uint16 { return wire.TypeSOA }

func (s SOA) Encode() []byte {
	var buf []byte
	buf, _ = wire.EncodeName(buf, s.MName)
	buf, _ = wire.EncodeName(buf, s.RName)
	tail := make([]byte, 20)
	binary.BigEndian.PutUint32(tail[0:4], s.Serial)
	binary.BigEndian.PutUint32(tail[4:8], s.Refresh)
	binary.BigEndian.PutUint32(tail[8:12], s.Retry)
	binary.BigEndian.PutUint32(tail[12:16], s.Expire)
	binary.BigEndian.PutUint32(tail[16:20], s.Minimum)
	return append(buf, tail...)
}

func parseSOA(msg []byte, offset int) (SOA, error) {
	mname, next, err := wire.DecodeName(msg, offset)
	if err != nil {
		return SOA{}, err
	}
	rname, next, err := wire.DecodeName(msg, next)
	if err != nil {
		return SOA{}, err
	}
	if next+20 > len(msg) {
		return SOA{}, fmt.Errorf("%w: SOA requires 5 trailing u32 fields", ErrInvalidRData)
	}
	return SOA{
		MName:   mname,
		RName:   rname,
		Serial:  binary.BigEndian.Uint32(msg[next : next+4]),
		Refresh: binary.BigEndian.Uint32(msg[next+4 : next+8]),
		Retry:   binary.BigEndian.Uint32(msg[next+8 : next+12]),
		Expire:  binary.BigEndian.Uint32(msg[next+12 : next+16]),
		Minimum: binary.BigEndian.Uint32(msg[next+16 : next+20]),
	}, nil
}
