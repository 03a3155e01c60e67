// Package random provides cryptographically secure randomization for the
// recursive resolver's outgoing queries, to resist cache-poisoning attacks
// such as the Kaminsky birthday attack.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// TransactionID generates a cryptographically random 16-bit transaction ID.
// Never use math/rand for this: a predictable transaction ID collapses the
// resolver's off-path spoof resistance to zero.
func TransactionID() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("random: crypto/rand failed: %v", err))
	}
	return binary.BigEndian.Uint16(buf[:])
}

// SourcePort generates a cryptographically random ephemeral UDP source
// port in the range [32768, 61000), adding entropy to the transaction ID
// against off-path response spoofing.
func SourcePort() uint16 {
	const (
		minPort   = 32768
		portRange = 61000 - 32768
	)

	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("random: crypto/rand failed: %v", err))
	}

	offset := binary.BigEndian.Uint32(buf[:]) % portRange
	return uint16(minPort + offset)
}

// QueryID ties a transaction ID to the source port a query was sent from,
// the pair an off-path attacker must guess to inject a forged answer.
type QueryID struct {
	TxID uint16
	Port uint16
}

// NewQueryID generates a fresh random query identity.
func NewQueryID() QueryID {
	return QueryID{TxID: TransactionID(), Port: SourcePort()}
}

func (q QueryID) String() string {
	return fmt.Sprintf("txid=%d port=%d", q.TxID, q.Port)
}

// Matches reports whether a response's transaction ID matches this query.
// Source-address and source-port matching for the response is enforced at
// the UDP socket layer by connecting the socket to the queried server.
func (q QueryID) Matches(responseTxID uint16) bool {
	return q.TxID == responseTxID
}

// PortPoolConfig configures a PortPool.
type PortPoolConfig struct {
	MinPort      int
	MaxPort      int
	MaxInUse     int
	PortLifetime time.Duration
}

// PortPool hands out randomized, non-repeating ephemeral source ports for
// resolver transport sockets, avoiding the port reuse that would otherwise
// narrow an attacker's guessing space.
type PortPool struct {
	mu sync.Mutex

	minPort, maxPort int
	available        map[uint16]struct{}
	inUse            map[uint16]time.Time
	portLifetime     time.Duration

	allocated, recycled, exhaustions uint64
}

// NewPortPool creates a pool over [MinPort, MaxPort) with the given
// lifetime before an in-use port becomes eligible for recycling.
func NewPortPool(cfg PortPoolConfig) (*PortPool, error) {
	if cfg.MinPort == 0 {
		cfg.MinPort = 32768
	}
	if cfg.MaxPort == 0 {
		cfg.MaxPort = 61000
	}
	if cfg.PortLifetime == 0 {
		cfg.PortLifetime = 2 * time.Minute
	}
	if cfg.MinPort >= cfg.MaxPort {
		return nil, fmt.Errorf("random: invalid port range [%d, %d)", cfg.MinPort, cfg.MaxPort)
	}

	p := &PortPool{
		minPort:      cfg.MinPort,
		maxPort:      cfg.MaxPort,
		available:    make(map[uint16]struct{}, cfg.MaxPort-cfg.MinPort),
		inUse:        make(map[uint16]time.Time),
		portLifetime: cfg.PortLifetime,
	}
	for port := cfg.MinPort; port < cfg.MaxPort; port++ {
		p.available[uint16(port)] = struct{}{}
	}
	return p, nil
}

// Allocate returns a randomly chosen available port, recycling an expired
// in-use port if the available set is empty.
func (p *PortPool) Allocate() (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.available) > 0 {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("random: crypto/rand failed: %w", err)
		}
		ports := make([]uint16, 0, len(p.available))
		for port := range p.available {
			ports = append(ports, port)
		}
		idx := int(binary.BigEndian.Uint32(buf[:])) % len(ports)
		port := ports[idx]

		delete(p.available, port)
		p.inUse[port] = time.Now()
		p.allocated++
		return port, nil
	}

	now := time.Now()
	for port, allocatedAt := range p.inUse {
		if now.Sub(allocatedAt) > p.portLifetime {
			p.inUse[port] = now
			p.recycled++
			return port, nil
		}
	}

	p.exhaustions++
	return 0, fmt.Errorf("random: port pool exhausted")
}

// Release returns port to the available pool.
func (p *PortPool) Release(port uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.inUse, port)
	if int(port) >= p.minPort && int(port) < p.maxPort {
		p.available[port] = struct{}{}
	}
}

// PoolStats summarizes pool utilization for operational reporting.
type PoolStats struct {
	Available   int
	InUse       int
	Allocated   uint64
	Recycled    uint64
	Exhaustions uint64
}

// Stats reports current pool utilization.
func (p *PortPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Available:   len(p.available),
		InUse:       len(p.inUse),
		Allocated:   p.allocated,
		Recycled:    p.recycled,
		Exhaustions: p.exhaustions,
	}
}
