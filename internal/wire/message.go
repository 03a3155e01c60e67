// Package wire implements a bit-exact DNS wire codec (RFC 1035, RFC 3596):
// encoding and decoding of DNS messages including domain-name compression.
package wire

// Header is the fixed 12-octet DNS message header (RFC 1035 4.1.1).
type Header struct {
	ID      uint16
	QR      bool
	Opcode  uint8 // 4 bits
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	Z       uint8 // 3 bits, reserved
	Rcode   uint8 // 4 bits
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Question is a single question-section entry.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// RR is a resource record with its RDATA left opaque; interpreting RDATA is
// the job of the rrtype package.
type RR struct {
	Name   string
	Type   uint16
	Class  uint16
	TTL    uint32
	RData  []byte
}

// Message is a full DNS message: a header plus four record sections. The
// section counts in Header are derived, not authoritative — callers should
// mutate the slices and call Reconcile (or just Encode, which reconciles
// implicitly) rather than hand-editing the counts.
type Message struct {
	Header     Header
	Question   []Question
	Answer     []RR
	Authority  []RR
	Additional []RR
}

// Reconcile recomputes the header's section counts from the section slices.
func (m *Message) Reconcile() {
	m.Header.QDCount = uint16(len(m.Question))
	m.Header.ANCount = uint16(len(m.Answer))
	m.Header.NSCount = uint16(len(m.Authority))
	m.Header.ARCount = uint16(len(m.Additional))
}

// Well-known RCODE values used by this engine (RFC 1035 4.1.1).
const (
	RcodeNoError  = 0
	RcodeFormErr  = 1
	RcodeServFail = 2
	RcodeNXDomain = 3
	RcodeNotImp   = 4
	RcodeRefused  = 5
)

// Well-known CLASS values.
const (
	ClassIN  = 1
	ClassANY = 255
)

// Well-known TYPE values this engine recognizes at the record-types layer;
// unknown values pass through unchanged per spec (§4.1, "Errors").
const (
	TypeA     = 1
	TypeNS    = 2
	TypeCNAME = 5
	TypeSOA   = 6
	TypeWKS   = 11
	TypePTR   = 12
	TypeHINFO = 13
	TypeMX    = 15
	TypeTXT   = 16
	TypeAAAA  = 28
	TypeANY   = 255
)
