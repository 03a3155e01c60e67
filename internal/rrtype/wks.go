package rrtype

import (
	"fmt"
	"net"

	"github.com/dnscore/dnscored/internal/wire"
)

// WKS is the RDATA of a WKS record: a well-known services bitmap for one
// IPv4 host and protocol.
type WKS struct {
	Address  net.IP
	Protocol uint8
	Bitmap   []byte
}

func (WKS) Type() uint16 { return wire.TypeWKS }

func (w WKS) Encode() []byte {
	buf := make([]byte, 0, 5+len(w.Bitmap))
	ip := w.Address.To4()
	buf = append(buf, ip...)
	buf = append(buf, w.Protocol)
	buf = append(buf, w.Bitmap...)
	return buf
}

// ParseWKS parses a WKS rdata payload: 4-octet IPv4, 1-octet protocol,
// variable-length bitmap (spec §3).
func ParseWKS(rdata []byte) (WKS, error) {
	if len(rdata) < 5 {
		return WKS{}, fmt.Errorf("%w: WKS requires at least 5 octets, got %d", ErrInvalidRData, len(rdata))
	}
	ip := make(net.IP, 4)
	copy(ip, rdata[0:4])
	bitmap := append([]byte(nil), rdata[5:]...)
	return WKS{Address: ip, Protocol: rdata[4], Bitmap: bitmap}, nil
}

// HasService reports whether the bitmap advertises the given port.
func (w WKS) HasService(port int) bool {
	byteIdx := port / 8
	if byteIdx >= len(w.Bitmap) {
		return false
	}
	bitIdx := uint(7 - port%8)
	return w.Bitmap[byteIdx]&(1<<bitIdx) != 0
}
