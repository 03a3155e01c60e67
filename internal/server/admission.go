package server

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AdmissionConfig configures the per-client query-admission limiter. This
// guards the server's own processing capacity (decode, zone lookup,
// resolver dispatch) ahead of the rate limiter, which only shapes the
// outgoing response stream once an answer has already been computed.
type AdmissionConfig struct {
	QueriesPerSecond float64
	BurstSize        int
	CleanupInterval  time.Duration
	ExemptNets       []*net.IPNet
	Enabled          bool
}

// DefaultAdmissionConfig returns a generous per-client budget: high enough
// that well-behaved resolvers and stub clients never notice it, low enough
// to blunt a single misbehaving source from starving everyone else.
func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		QueriesPerSecond: 100,
		BurstSize:        200,
		CleanupInterval:  5 * time.Minute,
		Enabled:          true,
	}
}

// admissionLimiter is a per-source-IP token bucket built on
// golang.org/x/time/rate, gating whether a query is even decoded and
// answered, independent of the response-shaping decision rrl.Limiter makes
// afterward.
type admissionLimiter struct {
	cfg AdmissionConfig

	mu          sync.Mutex
	byIP        map[string]*rate.Limiter
	lastCleanup time.Time

	allowed, rejected uint64
}

func newAdmissionLimiter(cfg AdmissionConfig) *admissionLimiter {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &admissionLimiter{
		cfg:         cfg,
		byIP:        make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

func (a *admissionLimiter) allow(ip net.IP) bool {
	if !a.cfg.Enabled {
		return true
	}
	if a.isExempt(ip) {
		return true
	}

	key := ip.String()

	a.mu.Lock()
	defer a.mu.Unlock()

	if time.Since(a.lastCleanup) > a.cfg.CleanupInterval {
		a.byIP = make(map[string]*rate.Limiter)
		a.lastCleanup = time.Now()
	}

	lim, ok := a.byIP[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(a.cfg.QueriesPerSecond), a.cfg.BurstSize)
		a.byIP[key] = lim
	}

	if lim.Allow() {
		a.allowed++
		return true
	}
	a.rejected++
	return false
}

func (a *admissionLimiter) isExempt(ip net.IP) bool {
	for _, n := range a.cfg.ExemptNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// AdmissionStats reports how many queries the admission limiter has let
// through versus rejected outright.
type AdmissionStats struct {
	Allowed, Rejected uint64
	TrackedClients    int
}

func (a *admissionLimiter) stats() AdmissionStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AdmissionStats{
		Allowed:        a.allowed,
		Rejected:       a.rejected,
		TrackedClients: len(a.byIP),
	}
}
