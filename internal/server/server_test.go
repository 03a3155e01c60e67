package server

import (
	"testing"

	"github.com/dnscore/dnscored/internal/rrl"
	"github.com/dnscore/dnscored/internal/wire"
	"github.com/dnscore/dnscored/internal/zone"
)

func buildTestServer(t *testing.T) *Server {
	t.Helper()

	store := zone.NewStore()
	b := zone.NewBuilder("example.com.", 3600)
	b.SOA("ns1.example.com.", "hostmaster.example.com.", 1, 3600, 600, 86400, 60)
	b.A("example.com.", "192.0.2.1")
	z, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	store.AddZone(z)

	cfg := DefaultConfig()
	cfg.Store = store
	cfg.EnableRecursive = false
	cfg.RRLConfig = rrl.DefaultConfig()
	cfg.RRLConfig.Enabled = false

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestAnswerAuthoritativeHit(t *testing.T) {
	s := buildTestServer(t)

	req := &wire.Message{
		Header:   wire.Header{ID: 42, RD: true},
		Question: []wire.Question{{Name: "example.com.", Type: wire.TypeA, Class: wire.ClassIN}},
	}

	resp := s.answer(req)
	if resp.Header.Rcode != wire.RcodeNoError {
		t.Fatalf("rcode = %d, want NOERROR", resp.Header.Rcode)
	}
	if len(resp.Answer) != 1 {
		t.Fatalf("answer count = %d, want 1", len(resp.Answer))
	}
}

func TestAnswerRefusedWithoutRecursionOrZone(t *testing.T) {
	s := buildTestServer(t)

	req := &wire.Message{
		Header:   wire.Header{ID: 7, RD: true},
		Question: []wire.Question{{Name: "unrelated.test.", Type: wire.TypeA, Class: wire.ClassIN}},
	}

	resp := s.answer(req)
	if resp.Header.Rcode != wire.RcodeRefused {
		t.Fatalf("rcode = %d, want REFUSED", resp.Header.Rcode)
	}
}

func TestAnswerFormErrOnEmptyQuestion(t *testing.T) {
	s := buildTestServer(t)

	req := &wire.Message{Header: wire.Header{ID: 1, RD: true}}
	resp := s.answer(req)
	if resp.Header.Rcode != wire.RcodeFormErr {
		t.Fatalf("rcode = %d, want FORMERR", resp.Header.Rcode)
	}
}

func TestHandleWireRoundTrip(t *testing.T) {
	s := buildTestServer(t)

	req := wire.Message{
		Header:   wire.Header{ID: 99, RD: true},
		Question: []wire.Question{{Name: "example.com.", Type: wire.TypeA, Class: wire.ClassIN}},
	}
	reqBytes, err := wire.Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	respBytes := s.handleWire(reqBytes, &fakeAddr{})
	if respBytes == nil {
		t.Fatal("handleWire returned nil")
	}

	resp, err := wire.Decode(respBytes)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if resp.Header.ID != 99 {
		t.Errorf("ID = %d, want 99", resp.Header.ID)
	}
	if resp.Header.Rcode != wire.RcodeNoError {
		t.Errorf("rcode = %d, want NOERROR", resp.Header.Rcode)
	}
}

func TestStatsCountQueries(t *testing.T) {
	s := buildTestServer(t)

	req := wire.Message{
		Header:   wire.Header{ID: 1, RD: true},
		Question: []wire.Question{{Name: "example.com.", Type: wire.TypeA, Class: wire.ClassIN}},
	}
	reqBytes, _ := wire.Encode(req)
	s.handleWire(reqBytes, &fakeAddr{})
	s.handleWire(reqBytes, &fakeAddr{})

	stats := s.Stats()
	if stats.Queries != 2 {
		t.Errorf("queries = %d, want 2", stats.Queries)
	}
	if stats.Answers != 2 {
		t.Errorf("answers = %d, want 2", stats.Answers)
	}
}

type fakeAddr struct{}

func (fakeAddr) Network() string { return "udp" }
func (fakeAddr) String() string  { return "192.0.2.50:53000" }
