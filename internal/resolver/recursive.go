// Package resolver implements the Recursive Resolver (spec §4.5): an
// iterative-recursion state machine that walks the DNS hierarchy from the
// root, follows delegations and CNAME chains, and caches answers.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dnscore/dnscored/internal/cache"
	"github.com/dnscore/dnscored/internal/random"
	"github.com/dnscore/dnscored/internal/transport"
	"github.com/dnscore/dnscored/internal/wire"
)

// ErrNameError is raised for NXDOMAIN-equivalent terminal outcomes: all
// nameservers exhausted, a referral with no resolvable glue, an empty
// answer with no referral, or a CNAME chain exceeding its depth bound.
var ErrNameError = errors.New("resolver: name error")

// ErrMaxIterations is raised when the outer iteration safety cap (spec
// §4.5, "at most 32 outer iterations") is exceeded.
var ErrMaxIterations = errors.New("resolver: max iterations reached")

const (
	maxOuterIterations = 32
	maxCNAMEDepth      = 16
	defaultPort        = 53
)

// RootServers holds the 13 IANA root server IPv4 addresses.
var RootServers = []net.IP{
	net.ParseIP("198.41.0.4"),     // a.root-servers.net
	net.ParseIP("199.9.14.201"),   // b.root-servers.net
	net.ParseIP("192.33.4.12"),    // c.root-servers.net
	net.ParseIP("199.7.91.13"),    // d.root-servers.net
	net.ParseIP("192.203.230.10"), // e.root-servers.net
	net.ParseIP("192.5.5.241"),    // f.root-servers.net
	net.ParseIP("192.112.36.4"),   // g.root-servers.net
	net.ParseIP("198.97.190.53"),  // h.root-servers.net
	net.ParseIP("192.36.148.17"),  // i.root-servers.net
	net.ParseIP("192.58.128.30"),  // j.root-servers.net
	net.ParseIP("193.0.14.129"),   // k.root-servers.net
	net.ParseIP("199.7.83.42"),    // l.root-servers.net
	net.ParseIP("202.12.27.33"),   // m.root-servers.net
}

// Config configures a Recursive resolver.
type Config struct {
	Timeout     time.Duration
	RetryCount  int
	UseCache    bool
	RootServers []net.IP

	// OnIterations, if set, is called once per top-level Query that runs
	// the iterative loop, with the number of outer iterations (spec §4.5)
	// it took, for metrics observation (spec §4.10). A Query answered from
	// the cache on entry does not call it.
	OnIterations func(n int)
}

// DefaultConfig returns the spec's default resolver configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:     5 * time.Second,
		RetryCount:  3,
		UseCache:    true,
		RootServers: RootServers,
	}
}

// Recursive is a full iterative-recursive DNS resolver.
type Recursive struct {
	cache     *cache.ShardedCache
	transport transport.Transport
	ports     *random.PortPool
	cfg       Config
}

// New creates a Recursive resolver over the given cache and transport.
// Both are injected explicitly per spec §9's decision against hidden
// process-wide singletons.
func New(c *cache.ShardedCache, t transport.Transport, cfg Config) *Recursive {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if len(cfg.RootServers) == 0 {
		cfg.RootServers = RootServers
	}
	ports, err := random.NewPortPool(random.PortPoolConfig{})
	if err != nil {
		panic(fmt.Sprintf("resolver: failed to build source port pool: %v", err))
	}
	return &Recursive{cache: c, transport: t, ports: ports, cfg: cfg}
}

// Query performs recursive resolution for (name, qtype, qclass) and
// returns a fully synthesized response message.
func (r *Recursive) Query(ctx context.Context, name string, qtype, qclass uint16) (*wire.Message, error) {
	name = wire.CanonicalName(name)

	if r.cfg.UseCache {
		if entry, ok := r.cache.Get(name, qtype, qclass); ok {
			msg := entry.Message
			return &msg, nil
		}
	}

	msg, iterations, err := r.resolveIterative(ctx, name, qtype, qclass, 0)
	if r.cfg.OnIterations != nil {
		r.cfg.OnIterations(iterations)
	}
	if err != nil {
		return nil, err
	}

	if r.cfg.UseCache && len(msg.Answer) > 0 {
		r.cache.Set(name, qtype, qclass, *msg, minTTL(msg.Answer))
	}

	return msg, nil
}

// ResolveA is a typed convenience that resolves name to its IPv4
// addresses.
func (r *Recursive) ResolveA(ctx context.Context, name string) ([]net.IP, error) {
	msg, err := r.Query(ctx, name, wire.TypeA, wire.ClassIN)
	if err != nil {
		return nil, err
	}
	var out []net.IP
	for _, rr := range msg.Answer {
		if rr.Type != wire.TypeA || len(rr.RData) != 4 {
			continue
		}
		ip := make(net.IP, 4)
		copy(ip, rr.RData)
		out = append(out, ip)
	}
	return out, nil
}

// resolveIterative implements the loop in spec §4.5: starting from the
// root servers, query down the delegation chain, following referrals and
// CNAME chains until an answer or a terminal failure is reached.
func (r *Recursive) resolveIterative(ctx context.Context, qname string, qtype, qclass uint16, cnameDepth int) (*wire.Message, int, error) {
	nameservers := append([]net.IP(nil), r.cfg.RootServers...)

	for iteration := 0; iteration < maxOuterIterations; iteration++ {
		if r.cfg.UseCache {
			if entry, ok := r.cache.Get(qname, qtype, qclass); ok {
				msg := entry.Message
				return &msg, iteration + 1, nil
			}
		}

		resp, err := r.queryAny(ctx, nameservers, qname, qtype, qclass)
		if err != nil {
			return nil, iteration + 1, fmt.Errorf("%w: %v", ErrNameError, err)
		}

		if resp.Header.Rcode == wire.RcodeNXDomain {
			return resp, iteration + 1, nil
		}

		if hasAnswerOfType(resp, qname, qtype) {
			if r.cfg.UseCache {
				r.cache.Set(qname, qtype, qclass, *resp, minTTL(resp.Answer))
			}
			return resp, iteration + 1, nil
		}

		if cname, ok := findCNAME(resp, qname); ok {
			cnameDepth++
			if cnameDepth > maxCNAMEDepth {
				return nil, iteration + 1, fmt.Errorf("%w: CNAME chain exceeds depth %d", ErrNameError, maxCNAMEDepth)
			}
			qname = wire.CanonicalName(cname)
			nameservers = append([]net.IP(nil), r.cfg.RootServers...)
			continue
		}

		if len(resp.Authority) > 0 {
			newServers, err := r.resolveReferral(ctx, resp)
			if err != nil {
				return nil, iteration + 1, err
			}
			if len(newServers) == 0 {
				return nil, iteration + 1, fmt.Errorf("%w: referral with no resolvable glue", ErrNameError)
			}
			nameservers = newServers
			continue
		}

		return nil, iteration + 1, fmt.Errorf("%w: empty response with no referral", ErrNameError)
	}

	return nil, maxOuterIterations, ErrMaxIterations
}

// resolveReferral resolves every delegated NS name to an IPv4 address,
// preferring glue A records carried in the additional section and falling
// back to a recursive lookup of the NS name when no glue is present.
func (r *Recursive) resolveReferral(ctx context.Context, resp *wire.Message) ([]net.IP, error) {
	var nsNames []string
	for _, rr := range resp.Authority {
		if rr.Type != wire.TypeNS {
			continue
		}
		target, _, err := wire.DecodeName(rr.RData, 0)
		if err != nil {
			continue
		}
		nsNames = append(nsNames, wire.CanonicalName(target))
	}

	var servers []net.IP
	for _, name := range nsNames {
		if ip, ok := findGlue(resp, name); ok {
			servers = append(servers, ip)
			continue
		}
		msg, _, err := r.resolveIterative(ctx, name, wire.TypeA, wire.ClassIN, 0)
		if err != nil {
			continue
		}
		for _, rr := range msg.Answer {
			if rr.Type == wire.TypeA && len(rr.RData) == 4 {
				servers = append(servers, net.IP(append([]byte(nil), rr.RData...)))
			}
		}
	}
	return servers, nil
}

func findGlue(msg *wire.Message, nsName string) (net.IP, bool) {
	for _, rr := range msg.Additional {
		if rr.Type != wire.TypeA || len(rr.RData) != 4 {
			continue
		}
		if wire.EqualNames(rr.Name, nsName) {
			return net.IP(append([]byte(nil), rr.RData...)), true
		}
	}
	return nil, false
}

func hasAnswerOfType(msg *wire.Message, qname string, qtype uint16) bool {
	if len(msg.Answer) == 0 {
		return false
	}
	for _, rr := range msg.Answer {
		if rr.Type == qtype && wire.EqualNames(rr.Name, qname) {
			return true
		}
	}
	return false
}

func findCNAME(msg *wire.Message, qname string) (string, bool) {
	for _, rr := range msg.Answer {
		if rr.Type == wire.TypeCNAME && wire.EqualNames(rr.Name, qname) {
			target, _, err := wire.DecodeName(rr.RData, 0)
			if err != nil {
				continue
			}
			return target, true
		}
	}
	return "", false
}

func minTTL(rrs []wire.RR) uint32 {
	if len(rrs) == 0 {
		return 0
	}
	min := rrs[0].TTL
	for _, rr := range rrs[1:] {
		if rr.TTL < min {
			min = rr.TTL
		}
	}
	return min
}

// queryAny tries each nameserver in order until one yields a usable
// response, discarding responses whose transaction id does not match the
// outstanding query (spec §4.5, minimum cache-poisoning bar).
func (r *Recursive) queryAny(ctx context.Context, nameservers []net.IP, qname string, qtype, qclass uint16) (*wire.Message, error) {
	var lastErr error

	for _, ip := range nameservers {
		resp, err := r.queryNameserver(ctx, ip, qname, qtype, qclass)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no nameservers available")
	}
	return nil, fmt.Errorf("all nameservers failed: %w", lastErr)
}

func (r *Recursive) queryNameserver(ctx context.Context, ip net.IP, qname string, qtype, qclass uint16) (*wire.Message, error) {
	qid := random.NewQueryID()

	req := wire.Message{
		Header: wire.Header{
			ID: qid.TxID,
			RD: true,
		},
		Question: []wire.Question{{Name: qname, Type: qtype, Class: qclass}},
	}

	reqBytes, err := wire.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	srcPort, err := r.ports.Allocate()
	if err != nil {
		return nil, fmt.Errorf("allocate source port: %w", err)
	}
	defer r.ports.Release(srcPort)

	endpoint := transport.Endpoint{IP: ip, Port: defaultPort, Proto: transport.ProtoUDP, SourcePort: srcPort}
	respBytes, err := r.transport.SendAndReceive(queryCtx, reqBytes, endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport to %s: %w", ip, err)
	}

	resp, err := wire.Decode(respBytes)
	if err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", ip, err)
	}

	if !qid.Matches(resp.Header.ID) {
		return nil, fmt.Errorf("transaction id mismatch from %s: got %d want %s", ip, resp.Header.ID, qid)
	}

	return resp, nil
}

// Stats summarizes resolver-level statistics.
type Stats struct {
	Cache cache.Stats
	Ports random.PoolStats
}

// Stats reports current resolver statistics.
func (r *Recursive) Stats() Stats {
	return Stats{Cache: r.cache.Stats(), Ports: r.ports.Stats()}
}

// Close releases resources owned by the resolver (the cache's background
// cleanup goroutine).
func (r *Recursive) Close() error {
	r.cache.Close()
	return nil
}
