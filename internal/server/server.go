// Package server wires the Authoritative Responder, Recursive Resolver,
// Zone Store, cache, transport listeners and RRL limiter into a single DNS
// daemon (spec §4.9): a query arrives over UDP or TCP, is answered
// authoritatively if a loaded zone covers it, recursively if enabled,
// and Refused otherwise.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dnscore/dnscored/internal/authority"
	"github.com/dnscore/dnscored/internal/cache"
	"github.com/dnscore/dnscored/internal/metrics"
	"github.com/dnscore/dnscored/internal/resolver"
	"github.com/dnscore/dnscored/internal/rrl"
	"github.com/dnscore/dnscored/internal/transport"
	"github.com/dnscore/dnscored/internal/wire"
	"github.com/dnscore/dnscored/internal/zone"
)

// Config holds server configuration.
type Config struct {
	UDPAddr string
	TCPAddr string

	EnableAuthoritative bool
	Store               *zone.Store

	EnableRecursive bool
	ResolverConfig  resolver.Config
	Transport       transport.Transport

	EnableRRL bool
	RRLConfig rrl.Config

	EnableAdmission bool
	AdmissionConfig AdmissionConfig

	CacheConfig cache.Config

	ReadTimeout time.Duration

	// Metrics, if set, receives query/resolver/RRL instrumentation (spec
	// §4.10). Nil disables metrics collection entirely.
	Metrics *metrics.Registry
}

// DefaultConfig returns the spec's default server configuration.
func DefaultConfig() Config {
	return Config{
		UDPAddr:             ":53",
		TCPAddr:             ":53",
		EnableAuthoritative: true,
		Store:               zone.NewStore(),
		EnableRecursive:     true,
		ResolverConfig:      resolver.DefaultConfig(),
		Transport:           transport.NewDual(transport.DefaultConfig()),
		EnableRRL:           true,
		RRLConfig:           rrl.DefaultConfig(),
		EnableAdmission:     true,
		AdmissionConfig:     DefaultAdmissionConfig(),
		CacheConfig:         cache.Config{ShardCount: 256, MaxEntries: 100000},
		ReadTimeout:         5 * time.Second,
	}
}

// Server is the DNS daemon: listeners plus the Responder/Resolver/RRL
// components they dispatch to.
type Server struct {
	cfg Config

	authoritative *authority.Responder
	recursive     *resolver.Recursive
	limiter       *rrl.Limiter
	admission     *admissionLimiter

	udp *transport.UDPListener
	tcp *transport.TCPListener

	queries  atomic.Uint64
	answers  atomic.Uint64
	errors   atomic.Uint64
	nxdomain atomic.Uint64

	mu      sync.Mutex
	running bool
}

// New builds a Server from cfg. The caller owns cfg.Store and cfg.Transport
// (spec §9's rule against hidden singletons); both must be non-nil when the
// corresponding Enable flag is set.
func New(cfg Config) (*Server, error) {
	if cfg.EnableAuthoritative && cfg.Store == nil {
		return nil, fmt.Errorf("server: authoritative mode requires a zone store")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Second
	}

	s := &Server{cfg: cfg}

	if cfg.EnableAuthoritative {
		s.authoritative = authority.New(cfg.Store)
	}

	if cfg.EnableRecursive {
		if cfg.Transport == nil {
			return nil, fmt.Errorf("server: recursive mode requires a transport")
		}
		c := cache.New(cfg.CacheConfig)
		if cfg.Metrics != nil {
			cfg.ResolverConfig.OnIterations = cfg.Metrics.ObserveIterations
		}
		s.recursive = resolver.New(c, cfg.Transport, cfg.ResolverConfig)
	}

	if cfg.EnableRRL {
		s.limiter = rrl.New(cfg.RRLConfig)
	}

	if cfg.EnableAdmission {
		s.admission = newAdmissionLimiter(cfg.AdmissionConfig)
	}

	s.udp = transport.NewUDPListener(cfg.UDPAddr, transport.HandlerFunc(s.handleWire))
	s.tcp = transport.NewTCPListener(cfg.TCPAddr, transport.HandlerFunc(s.handleWire))

	return s, nil
}

// Start binds the UDP and TCP listeners.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server: already running")
	}

	if err := s.udp.Start(); err != nil {
		return fmt.Errorf("server: start udp: %w", err)
	}
	if err := s.tcp.Start(); err != nil {
		s.udp.Stop()
		return fmt.Errorf("server: start tcp: %w", err)
	}

	s.running = true
	return nil
}

// Stop shuts down both listeners and releases owned resources.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	s.udp.Stop()
	s.tcp.Stop()

	if s.recursive != nil {
		s.recursive.Close()
	}
	if s.limiter != nil {
		s.limiter.Close()
	}

	s.running = false
	return nil
}

// handleWire decodes one raw wire message, answers it, and re-encodes the
// response. A nil return means "send nothing" (malformed input, or RRL
// dropped the response).
func (s *Server) handleWire(msgBytes []byte, from net.Addr) []byte {
	s.queries.Add(1)

	if s.admission != nil && !s.admission.allow(addrIP(from)) {
		return nil
	}

	req, err := wire.Decode(msgBytes)
	if err != nil {
		return nil
	}

	resp := s.answer(req)

	clientIP := addrIP(from)
	if s.limiter != nil && len(req.Question) > 0 {
		q := req.Question[0]
		category := rrl.Categorize(resp)
		action := s.limiter.Check(clientIP, q.Name, q.Type, category)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordRRLAction(action.String())
		}
		switch action {
		case rrl.ActionDrop:
			return nil
		case rrl.ActionSlip:
			resp = &wire.Message{Header: resp.Header, Question: resp.Question}
			resp.Header.TC = true
			resp.Header.Rcode = wire.RcodeNoError
			resp.Reconcile()
		}
	}

	switch resp.Header.Rcode {
	case wire.RcodeNoError:
		s.answers.Add(1)
	case wire.RcodeNXDomain:
		s.nxdomain.Add(1)
	default:
		s.errors.Add(1)
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordQuery(transportLabel(from), resp.Header.Rcode)
	}

	out, err := wire.Encode(*resp)
	if err != nil {
		return nil
	}
	return out
}

// answer routes a decoded request to the Authoritative Responder if a
// loaded zone covers the query name, otherwise to the Recursive Resolver
// when recursion is both enabled and requested, otherwise Refused.
func (s *Server) answer(req *wire.Message) *wire.Message {
	if len(req.Question) == 0 {
		resp := &wire.Message{Header: wire.Header{ID: req.Header.ID, QR: true, Rcode: wire.RcodeFormErr}}
		resp.Reconcile()
		return resp
	}

	q := req.Question[0]

	if s.authoritative != nil && s.cfg.Store.Match(q.Name) != nil {
		return s.authoritative.Respond(req)
	}

	if s.recursive != nil && req.Header.RD {
		msg, err := s.recursive.Query(context.Background(), q.Name, q.Type, q.Class)
		if err != nil {
			resp := &wire.Message{
				Header:   wire.Header{ID: req.Header.ID, QR: true, RD: req.Header.RD, RA: true, Rcode: wire.RcodeServFail},
				Question: req.Question,
			}
			resp.Reconcile()
			return resp
		}
		msg.Header.ID = req.Header.ID
		msg.Header.RD = req.Header.RD
		msg.Header.RA = true
		msg.Question = req.Question
		msg.Reconcile()
		return msg
	}

	resp := &wire.Message{
		Header:   wire.Header{ID: req.Header.ID, QR: true, RD: req.Header.RD, RA: s.recursive != nil, Rcode: wire.RcodeRefused},
		Question: req.Question,
	}
	resp.Reconcile()
	return resp
}

func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	default:
		return net.IPv4zero
	}
}

func transportLabel(addr net.Addr) string {
	switch addr.(type) {
	case *net.UDPAddr:
		return "udp"
	case *net.TCPAddr:
		return "tcp"
	default:
		return "unknown"
	}
}

// Stats summarizes server-level counters alongside its components' own
// statistics.
type Stats struct {
	Queries  uint64
	Answers  uint64
	Errors   uint64
	NXDomain uint64

	Resolver  *resolver.Stats
	RRL       *rrl.Stats
	Admission *AdmissionStats
}

// Stats reports current server statistics.
func (s *Server) Stats() Stats {
	st := Stats{
		Queries:  s.queries.Load(),
		Answers:  s.answers.Load(),
		Errors:   s.errors.Load(),
		NXDomain: s.nxdomain.Load(),
	}
	if s.recursive != nil {
		rs := s.recursive.Stats()
		st.Resolver = &rs
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.SetCacheSize(rs.Cache.Size)
		}
	}
	if s.limiter != nil {
		rs := s.limiter.Stats()
		st.RRL = &rs
	}
	if s.admission != nil {
		as := s.admission.stats()
		st.Admission = &as
	}
	return st
}
