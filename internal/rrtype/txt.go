package rrtype

import (
	"fmt"

	"github.com/dnscore/dnscored/internal/wire"
)

// TXT is the RDATA of a TXT record: one or more character-strings.
type TXT struct {
	Strings []string
}

func (TXT) Type() uint16 { return wire.TypeTXT }

func (t TXT) Encode() []byte {
	var buf []byte
	for _, s := range t.Strings {
		buf = append(buf, byte(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

// ParseTXT parses a TXT rdata payload into its character-strings. A
// zero-length payload decodes to an empty string list (spec §8).
func ParseTXT(rdata []byte) (TXT, error) {
	var out []string
	i := 0
	for i < len(rdata) {
		n := int(rdata[i])
		i++
		if i+n > len(rdata) {
			return TXT{}, fmt.Errorf("%w: TXT character-string exceeds rdata bounds", ErrInvalidRData)
		}
		out = append(out, string(rdata[i:i+n]))
		i += n
	}
	return TXT{Strings: out}, nil
}
