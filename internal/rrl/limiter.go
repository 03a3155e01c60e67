// Package rrl implements Response Rate Limiting (spec §4.8): a token-bucket
// limiter keyed by (client IP prefix, qname, response category) that guards
// against DNS amplification abuse. It is a pure server-side defense — it
// never changes the answer the Responder or Resolver produced, only whether
// and how that answer gets sent.
package rrl

import (
	"hash/fnv"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dnscore/dnscored/internal/wire"
)

// Category classifies a response for rate-limiting purposes.
type Category int

const (
	CategoryAnswer Category = iota
	CategoryError
	CategoryNXDomain
	CategoryReferral
	CategoryNodata
)

func (c Category) String() string {
	switch c {
	case CategoryAnswer:
		return "answer"
	case CategoryError:
		return "error"
	case CategoryNXDomain:
		return "nxdomain"
	case CategoryReferral:
		return "referral"
	case CategoryNodata:
		return "nodata"
	default:
		return "unknown"
	}
}

// Categorize determines the RRL category of a response message, per spec
// §4.8.
func Categorize(msg *wire.Message) Category {
	switch msg.Header.Rcode {
	case wire.RcodeNXDomain:
		return CategoryNXDomain
	case wire.RcodeNoError:
		if len(msg.Answer) > 0 {
			return CategoryAnswer
		}
		if len(msg.Authority) > 0 {
			return CategoryReferral
		}
		return CategoryNodata
	default:
		return CategoryError
	}
}

// Action is the disposition RRL assigns to a response.
type Action int

const (
	// ActionAllow sends the response unmodified.
	ActionAllow Action = iota
	// ActionDrop discards the response silently.
	ActionDrop
	// ActionSlip sends a truncated (TC=1), empty-bodied response so a
	// legitimate client retries over TCP while a spoofed one gains nothing.
	ActionSlip
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionDrop:
		return "drop"
	case ActionSlip:
		return "slip"
	default:
		return "unknown"
	}
}

const (
	// DefaultResponsesPerSecond is the ISC-recommended default limit for
	// CategoryAnswer.
	DefaultResponsesPerSecond = 5
	// DefaultErrorsPerSecond is the default limit for CategoryError.
	DefaultErrorsPerSecond = 5
	// DefaultNXDomainsPerSecond is the default limit for CategoryNXDomain.
	DefaultNXDomainsPerSecond = 5
	// DefaultWindow is the token bucket's sliding window, in seconds.
	DefaultWindow = 15
	// DefaultSlip sends a slipped response for 1 in N rate-limited
	// responses; the rest are dropped.
	DefaultSlip = 2
)

// Config configures a Limiter.
type Config struct {
	ResponsesPerSecond  int
	ErrorsPerSecond     int
	NXDomainsPerSecond  int
	ReferralsPerSecond  int
	NodataPerSecond     int

	// Window is the bucket's burst window in seconds.
	Window int

	// Slip sends a slipped (ActionSlip) response for 1 in Slip rate-limited
	// responses, dropping the rest. Slip 0 drops everything, Slip 1 slips
	// everything.
	Slip int

	// ExemptNets lists CIDRs that bypass rate limiting entirely.
	ExemptNets []*net.IPNet

	IPv4PrefixLen int
	IPv6PrefixLen int

	Enabled bool
}

// DefaultConfig returns the spec's recommended RRL configuration.
func DefaultConfig() Config {
	return Config{
		ResponsesPerSecond: DefaultResponsesPerSecond,
		ErrorsPerSecond:    DefaultErrorsPerSecond,
		NXDomainsPerSecond: DefaultNXDomainsPerSecond,
		ReferralsPerSecond: 5,
		NodataPerSecond:    5,
		Window:             DefaultWindow,
		Slip:               DefaultSlip,
		IPv4PrefixLen:      24,
		IPv6PrefixLen:      56,
		Enabled:            true,
	}
}

type bucket struct {
	tokens    int32
	lastCheck int64
}

// Limiter implements token-bucket Response Rate Limiting.
type Limiter struct {
	cfg Config

	buckets sync.Map // hash -> *bucket

	allowed atomic.Uint64
	dropped atomic.Uint64
	slipped atomic.Uint64

	stopCleanup chan struct{}
	cleanupDone sync.WaitGroup
}

// New creates a Limiter and starts its background bucket-eviction loop.
func New(cfg Config) *Limiter {
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.IPv4PrefixLen == 0 {
		cfg.IPv4PrefixLen = 24
	}
	if cfg.IPv6PrefixLen == 0 {
		cfg.IPv6PrefixLen = 56
	}

	l := &Limiter{cfg: cfg, stopCleanup: make(chan struct{})}
	l.cleanupDone.Add(1)
	go l.cleanup()
	return l
}

// Check applies RRL to a response about to be sent to client for
// (qname, qtype), classified under category, and returns the action the
// caller must take.
func (l *Limiter) Check(client net.IP, qname string, qtype uint16, category Category) Action {
	if !l.cfg.Enabled {
		l.allowed.Add(1)
		return ActionAllow
	}
	if l.isExempt(client) {
		l.allowed.Add(1)
		return ActionAllow
	}

	limit := l.limitFor(category)
	if limit == 0 {
		l.allowed.Add(1)
		return ActionAllow
	}

	hash := l.bucketHash(client, qname, qtype, category)
	now := time.Now().Unix()

	v, _ := l.buckets.LoadOrStore(hash, &bucket{
		tokens:    int32(limit * l.cfg.Window),
		lastCheck: now,
	})
	b := v.(*bucket)

	lastCheck := atomic.LoadInt64(&b.lastCheck)
	if elapsed := now - lastCheck; elapsed > 0 {
		maxTokens := int32(limit * l.cfg.Window)
		refill := int32(elapsed * int64(limit))
		current := atomic.LoadInt32(&b.tokens)
		updated := current + refill
		if updated > maxTokens {
			updated = maxTokens
		}
		atomic.StoreInt32(&b.tokens, updated)
		atomic.StoreInt64(&b.lastCheck, now)
	}

	if tokens := atomic.AddInt32(&b.tokens, -1); tokens >= 0 {
		l.allowed.Add(1)
		return ActionAllow
	}
	atomic.AddInt32(&b.tokens, 1)

	// Every Slip-th rate-limited response slips; the rest are dropped.
	limited := l.slipped.Load() + l.dropped.Load()
	if l.cfg.Slip > 0 && limited%uint64(l.cfg.Slip) == 0 {
		l.slipped.Add(1)
		return ActionSlip
	}
	l.dropped.Add(1)
	return ActionDrop
}

func (l *Limiter) isExempt(ip net.IP) bool {
	for _, n := range l.cfg.ExemptNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (l *Limiter) limitFor(category Category) int {
	switch category {
	case CategoryAnswer:
		return l.cfg.ResponsesPerSecond
	case CategoryError:
		return l.cfg.ErrorsPerSecond
	case CategoryNXDomain:
		return l.cfg.NXDomainsPerSecond
	case CategoryReferral:
		return l.cfg.ReferralsPerSecond
	case CategoryNodata:
		return l.cfg.NodataPerSecond
	default:
		return 0
	}
}

// bucketHash combines the client's network prefix (not its full address, so
// an attacker spraying a /24 still shares one bucket), qname, qtype and
// category into a single key.
func (l *Limiter) bucketHash(ip net.IP, qname string, qtype uint16, category Category) uint64 {
	h := fnv.New64a()
	h.Write(l.prefix(ip))
	h.Write([]byte(wire.CanonicalName(qname)))
	var tail [3]byte
	tail[0] = byte(qtype >> 8)
	tail[1] = byte(qtype)
	tail[2] = byte(category)
	h.Write(tail[:])
	return h.Sum64()
}

func (l *Limiter) prefix(ip net.IP) []byte {
	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(l.cfg.IPv4PrefixLen, 32))
	}
	v6 := ip.To16()
	if v6 == nil {
		return ip
	}
	return v6.Mask(net.CIDRMask(l.cfg.IPv6PrefixLen, 128))
}

func (l *Limiter) cleanup() {
	defer l.cleanupDone.Done()

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.performCleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) performCleanup() {
	cutoff := time.Now().Unix() - int64(l.cfg.Window*2)
	l.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		if atomic.LoadInt64(&b.lastCheck) < cutoff {
			l.buckets.Delete(key)
		}
		return true
	})
}

// Close stops the background cleanup goroutine.
func (l *Limiter) Close() {
	close(l.stopCleanup)
	l.cleanupDone.Wait()
}

// Stats summarizes Limiter activity.
type Stats struct {
	Allowed  uint64
	Dropped  uint64
	Slipped  uint64
	Total    uint64
	DropRate float64
}

// Stats reports current Limiter statistics.
func (l *Limiter) Stats() Stats {
	allowed := l.allowed.Load()
	dropped := l.dropped.Load()
	slipped := l.slipped.Load()
	total := allowed + dropped + slipped

	var dropRate float64
	if total > 0 {
		dropRate = float64(dropped) / float64(total)
	}
	return Stats{Allowed: allowed, Dropped: dropped, Slipped: slipped, Total: total, DropRate: dropRate}
}
