package wire

import "testing"

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	msg := Message{
		Header: Header{
			ID:     12345,
			QR:     true,
			Opcode: 0,
			AA:     true,
			RD:     true,
			RA:     true,
			Rcode:  RcodeNoError,
		},
		Question: []Question{{Name: "example.com.", Type: TypeA, Class: ClassIN}},
	}

	buf, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Header.ID != 12345 {
		t.Errorf("ID = %d, want 12345", got.Header.ID)
	}
	if !got.Header.QR || !got.Header.AA || !got.Header.RD || !got.Header.RA {
		t.Errorf("flags not preserved: %+v", got.Header)
	}
	if got.Header.Rcode != RcodeNoError {
		t.Errorf("Rcode = %d, want NOERROR", got.Header.Rcode)
	}
	if len(got.Question) != 1 || got.Question[0].Name != "example.com." {
		t.Errorf("question = %+v", got.Question)
	}
}

func TestEncodeDecodeARecord(t *testing.T) {
	msg := Message{
		Header:   Header{ID: 1, QR: true, Rcode: RcodeNoError},
		Question: []Question{{Name: "example.com.", Type: TypeA, Class: ClassIN}},
		Answer: []RR{
			{Name: "example.com.", Type: TypeA, Class: ClassIN, TTL: 300, RData: []byte{192, 0, 2, 1}},
		},
	}

	buf, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Answer) != 1 {
		t.Fatalf("answer count = %d, want 1", len(got.Answer))
	}
	rr := got.Answer[0]
	if rr.TTL != 300 || string(rr.RData) != string([]byte{192, 0, 2, 1}) {
		t.Errorf("answer rr = %+v", rr)
	}
}

func TestEncodeDecodeMultipleARecords(t *testing.T) {
	msg := Message{
		Header:   Header{ID: 2, QR: true},
		Question: []Question{{Name: "multi.example.com.", Type: TypeA, Class: ClassIN}},
		Answer: []RR{
			{Name: "multi.example.com.", Type: TypeA, Class: ClassIN, TTL: 60, RData: []byte{10, 0, 0, 1}},
			{Name: "multi.example.com.", Type: TypeA, Class: ClassIN, TTL: 60, RData: []byte{10, 0, 0, 2}},
			{Name: "multi.example.com.", Type: TypeA, Class: ClassIN, TTL: 60, RData: []byte{10, 0, 0, 3}},
		},
	}
	buf, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Answer) != 3 {
		t.Fatalf("answer count = %d, want 3", len(got.Answer))
	}
}

func TestEncodeLargeResponseDoesNotMistriggerNameTooLong(t *testing.T) {
	// Cumulative message size exceeds 255 bytes well before any individual
	// name does; checkNameLength must not confuse the two.
	answers := make([]RR, 0, 20)
	for i := 0; i < 20; i++ {
		answers = append(answers, RR{
			Name:  "host.example.com.",
			Type:  TypeA,
			Class: ClassIN,
			TTL:   60,
			RData: []byte{192, 0, 2, byte(i)},
		})
	}
	msg := Message{
		Header:   Header{ID: 9, QR: true},
		Question: []Question{{Name: "host.example.com.", Type: TypeA, Class: ClassIN}},
		Answer:   answers,
	}

	buf, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(buf) <= maxNameLength {
		t.Fatalf("test setup: encoded message length %d does not exceed %d", len(buf), maxNameLength)
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Answer) != 20 {
		t.Fatalf("answer count = %d, want 20", len(got.Answer))
	}
}

func TestEncodeDecodeTXTMultiString(t *testing.T) {
	raw := append([]byte{byte(len("a"))}, "a"...)
	raw = append(raw, byte(len("bb")))
	raw = append(raw, "bb"...)

	msg := Message{
		Header:   Header{ID: 3, QR: true},
		Question: []Question{{Name: "txt.example.com.", Type: TypeTXT, Class: ClassIN}},
		Answer: []RR{
			{Name: "txt.example.com.", Type: TypeTXT, Class: ClassIN, TTL: 60, RData: raw},
		},
	}
	buf, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got.Answer[0].RData) != string(raw) {
		t.Errorf("RData = %v, want %v", got.Answer[0].RData, raw)
	}
}

func TestDecodeFollowsCompressionPointer(t *testing.T) {
	nameBuf, err := EncodeName(nil, "example.com.")
	if err != nil {
		t.Fatalf("EncodeName: %v", err)
	}

	msg := Message{
		Header:   Header{ID: 4, QR: true},
		Question: []Question{{Name: "example.com.", Type: TypeNS, Class: ClassIN}},
		Answer: []RR{
			{Name: "example.com.", Type: TypeNS, Class: ClassIN, TTL: 3600, RData: nameBuf},
		},
	}
	buf, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// "example.com." appears three times (question name, RR owner name, NS
	// target). The owner name repeats the question name and compresses to a
	// 2-byte pointer; the NS target sits inside RDATA, which Encode copies
	// verbatim. 12 header + 17 question + 2 owner + 10 fixed + 13 rdata = 54.
	if len(buf) > 54 {
		t.Errorf("encoded length %d suggests names did not compress", len(buf))
	}

	decodedName, _, err := DecodeName(got.Answer[0].RData, 0)
	if err != nil {
		t.Fatalf("DecodeName: %v", err)
	}
	if !EqualNames(decodedName, "example.com.") {
		t.Errorf("decoded NS target = %q, want example.com.", decodedName)
	}
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	if _, err := Decode([]byte{0, 1, 2}); err != ErrTruncated {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeRejectsPointerLoop(t *testing.T) {
	msg := make([]byte, headerSize)
	msg = append(msg, 0xC0, 0x0C) // pointer to itself
	if _, _, err := decodeName(msg, headerSize); err == nil {
		t.Error("expected error for self-referential compression pointer")
	}
}

func TestEncodeNameRejectsOverlongLabel(t *testing.T) {
	longLabel := make([]byte, 64)
	for i := range longLabel {
		longLabel[i] = 'a'
	}
	_, err := EncodeName(nil, string(longLabel)+".example.com.")
	if err != ErrLabelTooLong {
		t.Errorf("err = %v, want ErrLabelTooLong", err)
	}
}

func TestReconcileRecomputesCounts(t *testing.T) {
	m := Message{
		Question:   []Question{{Name: "a.", Type: TypeA, Class: ClassIN}},
		Answer:     []RR{{Name: "a.", Type: TypeA}},
		Authority:  []RR{{Name: "a.", Type: TypeNS}, {Name: "a.", Type: TypeNS}},
		Additional: nil,
	}
	m.Reconcile()
	if m.Header.QDCount != 1 || m.Header.ANCount != 1 || m.Header.NSCount != 2 || m.Header.ARCount != 0 {
		t.Errorf("header counts = %+v", m.Header)
	}
}

func TestCanonicalNameLowercases(t *testing.T) {
	if got := CanonicalName("WWW.Example.COM."); got != "www.example.com." {
		t.Errorf("CanonicalName = %q, want www.example.com.", got)
	}
}

func TestEqualNamesIgnoresCaseAndTrailingDot(t *testing.T) {
	if !EqualNames("Example.COM", "example.com.") {
		t.Error("expected case/trailing-dot insensitive match")
	}
	if EqualNames("example.com.", "example.org.") {
		t.Error("expected mismatch for different names")
	}
}
