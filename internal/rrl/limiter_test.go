package rrl

import (
	"net"
	"testing"
	"time"

	"github.com/dnscore/dnscored/internal/wire"
)

func TestNewLimiterEnabledByDefault(t *testing.T) {
	l := New(DefaultConfig())
	defer l.Close()

	if !l.cfg.Enabled {
		t.Error("limiter should be enabled by default")
	}
}

func TestCheckAllow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResponsesPerSecond = 10
	l := New(cfg)
	defer l.Close()

	client := net.ParseIP("192.0.2.1")

	for i := 0; i < 5; i++ {
		if action := l.Check(client, "example.com", wire.TypeA, CategoryAnswer); action != ActionAllow {
			t.Errorf("query %d: action = %v, want ActionAllow", i, action)
		}
	}

	if stats := l.Stats(); stats.Allowed != 5 {
		t.Errorf("allowed = %d, want 5", stats.Allowed)
	}
}

func TestCheckRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResponsesPerSecond = 2
	cfg.Window = 1
	l := New(cfg)
	defer l.Close()

	client := net.ParseIP("192.0.2.1")

	for i := 0; i < 2; i++ {
		if action := l.Check(client, "example.com", wire.TypeA, CategoryAnswer); action != ActionAllow {
			t.Errorf("initial query %d should be allowed", i)
		}
	}

	if action := l.Check(client, "example.com", wire.TypeA, CategoryAnswer); action == ActionAllow {
		t.Error("query should be rate limited")
	}

	if stats := l.Stats(); stats.Dropped+stats.Slipped == 0 {
		t.Error("should have dropped or slipped at least one query")
	}
}

func TestCheckRefill(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResponsesPerSecond = 5
	cfg.Window = 1
	l := New(cfg)
	defer l.Close()

	client := net.ParseIP("192.0.2.1")

	for i := 0; i < 5; i++ {
		l.Check(client, "example.com", wire.TypeA, CategoryAnswer)
	}
	if action := l.Check(client, "example.com", wire.TypeA, CategoryAnswer); action == ActionAllow {
		t.Error("should be rate limited")
	}

	time.Sleep(1200 * time.Millisecond)

	if action := l.Check(client, "example.com", wire.TypeA, CategoryAnswer); action != ActionAllow {
		t.Error("should be allowed after refill")
	}
}

func TestCheckExempt(t *testing.T) {
	_, exemptNet, _ := net.ParseCIDR("192.0.2.0/24")

	cfg := DefaultConfig()
	cfg.ResponsesPerSecond = 1
	cfg.ExemptNets = []*net.IPNet{exemptNet}
	l := New(cfg)
	defer l.Close()

	client := net.ParseIP("192.0.2.100")

	for i := 0; i < 100; i++ {
		if action := l.Check(client, "example.com", wire.TypeA, CategoryAnswer); action != ActionAllow {
			t.Errorf("exempt client should always be allowed, got %v", action)
		}
	}
}

func TestCheckCategoriesUseSeparateBuckets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResponsesPerSecond = 2
	cfg.NXDomainsPerSecond = 2
	cfg.Window = 1
	l := New(cfg)
	defer l.Close()

	client := net.ParseIP("192.0.2.1")

	for i := 0; i < 2; i++ {
		l.Check(client, "example.com", wire.TypeA, CategoryAnswer)
	}

	if action := l.Check(client, "notfound.com", wire.TypeA, CategoryNXDomain); action != ActionAllow {
		t.Error("NXDOMAIN should use a separate bucket from answers")
	}
}

func TestCheckSlipSplitsBetweenSlipAndDrop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResponsesPerSecond = 1
	cfg.Window = 1
	cfg.Slip = 2
	l := New(cfg)
	defer l.Close()

	client := net.ParseIP("192.0.2.1")
	l.Check(client, "example.com", wire.TypeA, CategoryAnswer)

	var slipped, dropped int
	for i := 0; i < 100; i++ {
		switch l.Check(client, "example.com", wire.TypeA, CategoryAnswer) {
		case ActionSlip:
			slipped++
		case ActionDrop:
			dropped++
		}
	}

	if slipped == 0 {
		t.Error("should have some slipped responses")
	}
	if dropped == 0 {
		t.Error("should have some dropped responses")
	}

	ratio := float64(slipped) / float64(slipped+dropped)
	if ratio < 0.3 || ratio > 0.7 {
		t.Errorf("slip ratio = %.2f, expected ~0.5", ratio)
	}
}

func TestCheckDisabledAlwaysAllows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	l := New(cfg)
	defer l.Close()

	client := net.ParseIP("192.0.2.1")
	for i := 0; i < 1000; i++ {
		if action := l.Check(client, "example.com", wire.TypeA, CategoryAnswer); action != ActionAllow {
			t.Error("disabled limiter should always allow")
		}
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		msg  *wire.Message
		want Category
	}{
		{"answer", &wire.Message{Header: wire.Header{Rcode: wire.RcodeNoError}, Answer: []wire.RR{{}}}, CategoryAnswer},
		{"referral", &wire.Message{Header: wire.Header{Rcode: wire.RcodeNoError}, Authority: []wire.RR{{}}}, CategoryReferral},
		{"nodata", &wire.Message{Header: wire.Header{Rcode: wire.RcodeNoError}}, CategoryNodata},
		{"nxdomain", &wire.Message{Header: wire.Header{Rcode: wire.RcodeNXDomain}}, CategoryNXDomain},
		{"servfail", &wire.Message{Header: wire.Header{Rcode: wire.RcodeServFail}}, CategoryError},
		{"formerr", &wire.Message{Header: wire.Header{Rcode: wire.RcodeFormErr}}, CategoryError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.msg); got != tt.want {
				t.Errorf("Categorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatsAddUp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResponsesPerSecond = 2
	cfg.Window = 1
	l := New(cfg)
	defer l.Close()

	client := net.ParseIP("192.0.2.1")
	for i := 0; i < 10; i++ {
		l.Check(client, "example.com", wire.TypeA, CategoryAnswer)
	}

	stats := l.Stats()
	if stats.Total != 10 {
		t.Errorf("total = %d, want 10", stats.Total)
	}
	if stats.Allowed+stats.Dropped+stats.Slipped != stats.Total {
		t.Error("stats don't add up")
	}
	if stats.DropRate < 0 || stats.DropRate > 1 {
		t.Errorf("dropRate = %.2f, should be between 0 and 1", stats.DropRate)
	}
}

func BenchmarkCheck(b *testing.B) {
	l := New(DefaultConfig())
	defer l.Close()

	client := net.ParseIP("192.0.2.1")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Check(client, "example.com", wire.TypeA, CategoryAnswer)
	}
}
