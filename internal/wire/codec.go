package wire

import "encoding/binary"

const headerSize = 12

// Encode serializes a Message to wire format. Section counts are recomputed
// from the section slices before encoding, per spec §3 ("the arrays are the
// source of truth"). Domain-name compression is applied opportunistically:
// any question or owner name, or name suffix, already written earlier in the
// message is replaced by a back-reference pointer. RDATA is copied verbatim:
// names inside it are neither compressed nor used as pointer targets.
func Encode(m Message) ([]byte, error) {
	m.Reconcile()

	buf := make([]byte, headerSize)
	encodeHeader(buf, m.Header)

	compress := make(map[string]int)

	var err error
	for _, q := range m.Question {
		buf, err = encodeName(buf, 0, q.Name, compress)
		if err != nil {
			return nil, err
		}
		buf = appendUint16(buf, q.Type)
		buf = appendUint16(buf, q.Class)
	}

	for _, section := range [][]RR{m.Answer, m.Authority, m.Additional} {
		for _, rr := range section {
			buf, err = encodeRR(buf, rr, compress)
			if err != nil {
				return nil, err
			}
		}
	}

	return buf, nil
}

func encodeRR(buf []byte, rr RR, compress map[string]int) ([]byte, error) {
	var err error
	buf, err = encodeName(buf, 0, rr.Name, compress)
	if err != nil {
		return nil, err
	}
	buf = appendUint16(buf, rr.Type)
	buf = appendUint16(buf, rr.Class)
	buf = appendUint32(buf, rr.TTL)
	buf = appendUint16(buf, uint16(len(rr.RData)))
	buf = append(buf, rr.RData...)
	return buf, nil
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func encodeHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint16(buf[0:2], h.ID)

	var flags uint16
	if h.QR {
		flags |= 1 << 15
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.AA {
		flags |= 1 << 10
	}
	if h.TC {
		flags |= 1 << 9
	}
	if h.RD {
		flags |= 1 << 8
	}
	if h.RA {
		flags |= 1 << 7
	}
	flags |= uint16(h.Z&0x07) << 4
	flags |= uint16(h.Rcode & 0x0F)
	binary.BigEndian.PutUint16(buf[2:4], flags)

	binary.BigEndian.PutUint16(buf[4:6], h.QDCount)
	binary.BigEndian.PutUint16(buf[6:8], h.ANCount)
	binary.BigEndian.PutUint16(buf[8:10], h.NSCount)
	binary.BigEndian.PutUint16(buf[10:12], h.ARCount)
}

// Decode parses a wire-format DNS message. See spec §4.1 for the DecodeError
// taxonomy.
func Decode(msg []byte) (*Message, error) {
	if len(msg) < headerSize {
		return nil, ErrTruncated
	}

	m := &Message{}
	m.Header = decodeHeader(msg)

	offset := headerSize

	m.Question = make([]Question, 0, m.Header.QDCount)
	for i := 0; i < int(m.Header.QDCount); i++ {
		q, next, err := decodeQuestion(msg, offset)
		if err != nil {
			return nil, err
		}
		m.Question = append(m.Question, q)
		offset = next
	}

	var err error
	m.Answer, offset, err = decodeRRSection(msg, offset, int(m.Header.ANCount))
	if err != nil {
		return nil, err
	}
	m.Authority, offset, err = decodeRRSection(msg, offset, int(m.Header.NSCount))
	if err != nil {
		return nil, err
	}
	m.Additional, _, err = decodeRRSection(msg, offset, int(m.Header.ARCount))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func decodeHeader(msg []byte) Header {
	var h Header
	h.ID = binary.BigEndian.Uint16(msg[0:2])

	flags := binary.BigEndian.Uint16(msg[2:4])
	h.QR = flags&(1<<15) != 0
	h.Opcode = uint8((flags >> 11) & 0x0F)
	h.AA = flags&(1<<10) != 0
	h.TC = flags&(1<<9) != 0
	h.RD = flags&(1<<8) != 0
	h.RA = flags&(1<<7) != 0
	h.Z = uint8((flags >> 4) & 0x07)
	h.Rcode = uint8(flags & 0x0F)

	h.QDCount = binary.BigEndian.Uint16(msg[4:6])
	h.ANCount = binary.BigEndian.Uint16(msg[6:8])
	h.NSCount = binary.BigEndian.Uint16(msg[8:10])
	h.ARCount = binary.BigEndian.Uint16(msg[10:12])

	return h
}

func decodeQuestion(msg []byte, offset int) (Question, int, error) {
	name, offset, err := decodeName(msg, offset)
	if err != nil {
		return Question{}, 0, err
	}

	if offset+4 > len(msg) {
		return Question{}, 0, ErrTruncated
	}

	q := Question{
		Name:  name,
		Type:  binary.BigEndian.Uint16(msg[offset : offset+2]),
		Class: binary.BigEndian.Uint16(msg[offset+2 : offset+4]),
	}
	return q, offset + 4, nil
}

func decodeRRSection(msg []byte, offset, count int) ([]RR, int, error) {
	rrs := make([]RR, 0, count)
	for i := 0; i < count; i++ {
		if offset >= len(msg) {
			return nil, 0, ErrSectionCountMismatch
		}

		rr, next, err := decodeRR(msg, offset)
		if err != nil {
			return nil, 0, err
		}
		rrs = append(rrs, rr)
		offset = next
	}
	return rrs, offset, nil
}

func decodeRR(msg []byte, offset int) (RR, int, error) {
	name, offset, err := decodeName(msg, offset)
	if err != nil {
		return RR{}, 0, err
	}

	if offset+10 > len(msg) {
		return RR{}, 0, ErrTruncated
	}

	rr := RR{
		Name:  name,
		Type:  binary.BigEndian.Uint16(msg[offset : offset+2]),
		Class: binary.BigEndian.Uint16(msg[offset+2 : offset+4]),
		TTL:   binary.BigEndian.Uint32(msg[offset+4 : offset+8]),
	}
	rdlength := int(binary.BigEndian.Uint16(msg[offset+8 : offset+10]))
	offset += 10

	if offset+rdlength > len(msg) {
		return RR{}, 0, ErrTruncated
	}

	rdata, err := decompressRData(msg, offset, rdlength, rr.Type)
	if err != nil {
		return RR{}, 0, err
	}
	rr.RData = rdata
	offset += rdlength

	return rr, offset, nil
}

// decompressRData returns rdata with any embedded domain name expanded to
// its uncompressed wire form. RDATA is framed as opaque bytes (spec
// §4.1), but embedded names may use compression pointers that reference
// offsets elsewhere in the full message (spec §4.2); since an RR is a
// value object with no reference back to the message it came from, those
// pointers must be resolved once, at decode time, or they become
// dangling.
func decompressRData(msg []byte, rdataOffset, rdlength int, rrType uint16) ([]byte, error) {
	raw := msg[rdataOffset : rdataOffset+rdlength]

	switch rrType {
	case TypeCNAME, TypeNS, TypePTR:
		name, next, err := decodeName(msg, rdataOffset)
		if err != nil {
			return nil, err
		}
		if next > rdataOffset+rdlength {
			return nil, ErrMalformedName
		}
		return EncodeName(nil, name)

	case TypeMX:
		if rdlength < 2 {
			return nil, ErrTruncated
		}
		name, next, err := decodeName(msg, rdataOffset+2)
		if err != nil {
			return nil, err
		}
		if next > rdataOffset+rdlength {
			return nil, ErrMalformedName
		}
		out := append([]byte(nil), raw[:2]...)
		out, err = EncodeName(out, name)
		return out, err

	case TypeSOA:
		mname, next1, err := decodeName(msg, rdataOffset)
		if err != nil {
			return nil, err
		}
		rname, next2, err := decodeName(msg, next1)
		if err != nil {
			return nil, err
		}
		if next2+20 > rdataOffset+rdlength {
			return nil, ErrTruncated
		}
		out, err := EncodeName(nil, mname)
		if err != nil {
			return nil, err
		}
		out, err = EncodeName(out, rname)
		if err != nil {
			return nil, err
		}
		out = append(out, msg[next2:next2+20]...)
		return out, nil

	default:
		out := make([]byte, rdlength)
		copy(out, raw)
		return out, nil
	}
}
