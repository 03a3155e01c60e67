package server

import (
	"net"
	"testing"
)

func TestAdmissionAllowsWithinBurst(t *testing.T) {
	a := newAdmissionLimiter(AdmissionConfig{QueriesPerSecond: 10, BurstSize: 5, Enabled: true})
	ip := net.ParseIP("198.51.100.7")

	for i := 0; i < 5; i++ {
		if !a.allow(ip) {
			t.Fatalf("call %d: expected allow within burst", i)
		}
	}
	if a.allow(ip) {
		t.Error("expected rejection once burst is exhausted")
	}

	stats := a.stats()
	if stats.Allowed != 5 || stats.Rejected != 1 {
		t.Errorf("stats = %+v, want Allowed=5 Rejected=1", stats)
	}
}

func TestAdmissionDisabledAlwaysAllows(t *testing.T) {
	a := newAdmissionLimiter(AdmissionConfig{QueriesPerSecond: 1, BurstSize: 1, Enabled: false})
	ip := net.ParseIP("198.51.100.8")

	for i := 0; i < 10; i++ {
		if !a.allow(ip) {
			t.Fatalf("call %d: disabled limiter should always allow", i)
		}
	}
}

func TestAdmissionExemptNetBypassesLimit(t *testing.T) {
	_, exempt, err := net.ParseCIDR("198.51.100.0/24")
	if err != nil {
		t.Fatalf("ParseCIDR: %v", err)
	}
	a := newAdmissionLimiter(AdmissionConfig{
		QueriesPerSecond: 1,
		BurstSize:        1,
		Enabled:          true,
		ExemptNets:       []*net.IPNet{exempt},
	})
	ip := net.ParseIP("198.51.100.9")

	for i := 0; i < 10; i++ {
		if !a.allow(ip) {
			t.Fatalf("call %d: exempt net should always allow", i)
		}
	}
}

func TestAdmissionTracksDistinctClients(t *testing.T) {
	a := newAdmissionLimiter(AdmissionConfig{QueriesPerSecond: 10, BurstSize: 10, Enabled: true})
	a.allow(net.ParseIP("198.51.100.10"))
	a.allow(net.ParseIP("198.51.100.11"))

	if got := a.stats().TrackedClients; got != 2 {
		t.Errorf("TrackedClients = %d, want 2", got)
	}
}
