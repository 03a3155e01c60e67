// Package rrtype provides typed views over the opaque RDATA octet string
// framed by the wire codec, one per supported DNS record kind (spec §4.2).
package rrtype

import (
	"errors"

	"github.com/dnscore/dnscored/internal/wire"
)

// ErrInvalidRData is returned when an RDATA payload does not satisfy the
// length/shape constraints for its declared type.
var ErrInvalidRData = errors.New("rrtype: invalid rdata for type")

// RData is the tagged union of supported record payloads plus Unknown,
// modeled as a sum type per spec §9 ("class inheritance -> tagged union")
// rather than as a class hierarchy. Only unrecognized type codes decode to
// Unknown: rdata of a recognized type that does not match that type's shape
// is reported as an error (ErrInvalidRData, or a wire name error), not
// returned as Unknown.
type RData interface {
	// Type returns the RR type code this payload encodes.
	Type() uint16

	// Encode returns the canonical wire-format RDATA bytes for this value.
	// Embedded domain names are written uncompressed; spec §4.1 permits an
	// encoder to skip compression entirely.
	Encode() []byte
}

// Unknown carries the raw bytes of a type this package does not model, so
// that an unrecognized type code never produces a decode error at this
// layer (spec §4.1: "Unknown type/class ... values do NOT error").
type Unknown struct {
	RRType uint16
	Raw    []byte
}

func (u Unknown) Type() uint16   { return u.RRType }
func (u Unknown) Encode() []byte { return append([]byte(nil), u.Raw...) }

// DecodeStandalone parses rdata bytes with no embedded domain names. Use
// Decode instead for types whose RDATA carries a name that may be
// compressed against the enclosing message.
func DecodeStandalone(rrtype uint16, rdata []byte) (RData, error) {
	switch rrtype {
	case wire.TypeA:
		return ParseA(rdata)
	case wire.TypeAAAA:
		return ParseAAAA(rdata)
	case wire.TypeTXT:
		return ParseTXT(rdata)
	case wire.TypeHINFO:
		return ParseHINFO(rdata)
	case wire.TypeWKS:
		return ParseWKS(rdata)
	case wire.TypeCNAME, wire.TypeNS, wire.TypePTR, wire.TypeMX, wire.TypeSOA:
		// These types embed names that may be compressed in the general
		// case; DecodeStandalone is only valid for them when the caller
		// already knows the slice holds no compression pointers (e.g. a
		// test fixture built with an uncompressed encoder).
		return decodeNamedStandalone(rrtype, rdata)
	default:
		return Unknown{RRType: rrtype, Raw: append([]byte(nil), rdata...)}, nil
	}
}

// Decode parses RDATA found within a full message buffer, following
// compression pointers for any embedded domain names (spec §4.2).
func Decode(rrtype uint16, msg []byte, rdataOffset, rdlength int) (RData, error) {
	switch rrtype {
	case wire.TypeA:
		return ParseA(msg[rdataOffset : rdataOffset+rdlength])
	case wire.TypeAAAA:
		return ParseAAAA(msg[rdataOffset : rdataOffset+rdlength])
	case wire.TypeTXT:
		return ParseTXT(msg[rdataOffset : rdataOffset+rdlength])
	case wire.TypeHINFO:
		return ParseHINFO(msg[rdataOffset : rdataOffset+rdlength])
	case wire.TypeWKS:
		return ParseWKS(msg[rdataOffset : rdataOffset+rdlength])
	case wire.TypeCNAME:
		name, err := decodeEmbeddedName(msg, rdataOffset)
		if err != nil {
			return nil, err
		}
		return CNAME{Target: name}, nil
	case wire.TypeNS:
		name, err := decodeEmbeddedName(msg, rdataOffset)
		if err != nil {
			return nil, err
		}
		return NS{Target: name}, nil
	case wire.TypePTR:
		name, err := decodeEmbeddedName(msg, rdataOffset)
		if err != nil {
			return nil, err
		}
		return PTR{Target: name}, nil
	case wire.TypeMX:
		return parseMX(msg, rdataOffset)
	case wire.TypeSOA:
		return parseSOA(msg, rdataOffset)
	default:
		return Unknown{RRType: rrtype, Raw: append([]byte(nil), msg[rdataOffset:rdataOffset+rdlength]...)}, nil
	}
}

func decodeEmbeddedName(msg []byte, offset int) (string, error) {
	name, _, err := wire.DecodeName(msg, offset)
	return name, err
}

func decodeNamedStandalone(rrtype uint16, rdata []byte) (RData, error) {
	switch rrtype {
	case wire.TypeCNAME:
		name, err := decodeEmbeddedName(rdata, 0)
		if err != nil {
			return nil, err
		}
		return CNAME{Target: name}, nil
	case wire.TypeNS:
		name, err := decodeEmbeddedName(rdata, 0)
		if err != nil {
			return nil, err
		}
		return NS{Target: name}, nil
	case wire.TypePTR:
		name, err := decodeEmbeddedName(rdata, 0)
		if err != nil {
			return nil, err
		}
		return PTR{Target: name}, nil
	case wire.TypeMX:
		return parseMX(rdata, 0)
	case wire.TypeSOA:
		return parseSOA(rdata, 0)
	}
	return nil, ErrInvalidRData
}
