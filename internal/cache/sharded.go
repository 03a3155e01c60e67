// Package cache implements the resolver's response cache (spec §3): a
// (name, type, class)-keyed store of full response messages with
// insertion-timestamp-based freshness tracking.
package cache

import (
	"crypto/rand"
	"encoding/binary"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dchest/siphash"

	"github.com/dnscore/dnscored/internal/wire"
)

const (
	defaultShardCount = 256
	defaultShardSize  = 10000
	cleanupInterval   = 60 * time.Second
)

// siphash key, generated once per process from crypto/rand so that cache
// keys aren't predictable from a build's source. A fixed key would let an
// attacker who can guess it craft queries that collide into the same
// shard bucket.
var hashKey0, hashKey1 = newHashKey()

func newHashKey() (uint64, uint64) {
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic("cache: failed to seed siphash key: " + err.Error())
	}
	return binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])
}

// Entry is a cached DNS response.
type Entry struct {
	Message    wire.Message
	InsertedAt time.Time
	MinTTL     uint32

	QName  string
	QType  uint16
	QClass uint16

	Hits atomic.Uint64
}

// IsFresh reports whether the entry is still usable at instant now.
func (e *Entry) IsFresh(now time.Time) bool {
	return now.Sub(e.InsertedAt) < time.Duration(e.MinTTL)*time.Second
}

type shard struct {
	mu      sync.RWMutex
	entries map[uint64]*Entry
	maxSize int
}

// ShardedCache is a thread-safe, TTL-aware cache sharded across multiple
// locks to bound contention under concurrent query load.
type ShardedCache struct {
	shards     []*shard
	shardCount int
	shardMask  uint64

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	stopCleanup chan struct{}
	cleanupDone sync.WaitGroup
}

// Config configures a ShardedCache.
type Config struct {
	MaxEntries int
	ShardCount int
}

// New creates a ShardedCache and starts its background cleanup goroutine.
// Call Close to stop it.
func New(cfg Config) *ShardedCache {
	if cfg.ShardCount == 0 {
		cfg.ShardCount = defaultShardCount
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = defaultShardSize * cfg.ShardCount
	}
	if cfg.ShardCount&(cfg.ShardCount-1) != 0 {
		n := 1
		for n < cfg.ShardCount {
			n <<= 1
		}
		cfg.ShardCount = n
	}

	shardSize := cfg.MaxEntries / cfg.ShardCount

	c := &ShardedCache{
		shards:      make([]*shard, cfg.ShardCount),
		shardCount:  cfg.ShardCount,
		shardMask:   uint64(cfg.ShardCount - 1),
		stopCleanup: make(chan struct{}),
	}
	for i := 0; i < cfg.ShardCount; i++ {
		c.shards[i] = &shard{
			entries: make(map[uint64]*Entry, shardSize),
			maxSize: shardSize,
		}
	}

	c.cleanupDone.Add(1)
	go c.cleanupExpired()

	return c
}

// Key computes the cache key for a (name, type, class) tuple using
// SipHash-2-4, which resists the kind of crafted-input hash-flooding that
// a non-cryptographic hash (FNV, xxhash) would be vulnerable to if qnames
// ever originate from untrusted, attacker-chosen input.
func Key(qname string, qtype, qclass uint16) uint64 {
	var buf strings.Builder
	buf.WriteString(wire.CanonicalName(qname))
	buf.WriteByte(0)
	buf.WriteByte(byte(qtype >> 8))
	buf.WriteByte(byte(qtype))
	buf.WriteByte(byte(qclass >> 8))
	buf.WriteByte(byte(qclass))
	return siphash.Hash(hashKey0, hashKey1, []byte(buf.String()))
}

func (c *ShardedCache) getShard(hash uint64) *shard {
	return c.shards[hash&c.shardMask]
}

// Get returns the cached entry for (qname, qtype, qclass) if present and
// fresh. A hash collision against a different query tuple is treated as a
// miss rather than returned as a false hit.
func (c *ShardedCache) Get(qname string, qtype, qclass uint16) (*Entry, bool) {
	hash := Key(qname, qtype, qclass)
	s := c.getShard(hash)

	s.mu.RLock()
	entry, ok := s.entries[hash]
	s.mu.RUnlock()

	if !ok || !entryMatches(entry, qname, qtype, qclass) {
		c.misses.Add(1)
		return nil, false
	}

	if !entry.IsFresh(time.Now()) {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	entry.Hits.Add(1)
	return entry, true
}

func entryMatches(e *Entry, qname string, qtype, qclass uint16) bool {
	return e != nil && wire.EqualNames(e.QName, qname) && e.QType == qtype && e.QClass == qclass
}

// Set stores msg as the cached answer for (qname, qtype, qclass), with
// minTTL governing freshness (spec §3: "stale once now - insertion >=
// min(answer TTLs)").
func (c *ShardedCache) Set(qname string, qtype, qclass uint16, msg wire.Message, minTTL uint32) {
	hash := Key(qname, qtype, qclass)
	s := c.getShard(hash)

	entry := &Entry{
		Message:    msg,
		InsertedAt: time.Now(),
		MinTTL:     minTTL,
		QName:      wire.CanonicalName(qname),
		QType:      qtype,
		QClass:     qclass,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxSize {
		c.evictOldest(s)
	}
	s.entries[hash] = entry
}

// Delete removes the cached entry for (qname, qtype, qclass), if any.
func (c *ShardedCache) Delete(qname string, qtype, qclass uint16) {
	hash := Key(qname, qtype, qclass)
	s := c.getShard(hash)

	s.mu.Lock()
	delete(s.entries, hash)
	s.mu.Unlock()
}

func (c *ShardedCache) evictOldest(s *shard) {
	var oldestHash uint64
	var oldestTime time.Time
	first := true

	for hash, entry := range s.entries {
		if first || entry.InsertedAt.Before(oldestTime) {
			oldestHash, oldestTime, first = hash, entry.InsertedAt, false
		}
	}
	if !first {
		delete(s.entries, oldestHash)
		c.evictions.Add(1)
	}
}

// Flush clears every entry from the cache.
func (c *ShardedCache) Flush() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.entries = make(map[uint64]*Entry, s.maxSize)
		s.mu.Unlock()
	}
}

func (c *ShardedCache) cleanupExpired() {
	defer c.cleanupDone.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performCleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *ShardedCache) performCleanup() {
	now := time.Now()

	for _, s := range c.shards {
		s.mu.Lock()
		var expired []uint64
		for hash, entry := range s.entries {
			if !entry.IsFresh(now) {
				expired = append(expired, hash)
			}
		}
		for _, hash := range expired {
			delete(s.entries, hash)
			c.expirations.Add(1)
		}
		s.mu.Unlock()

		if len(expired) > 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

// Stats summarizes cache effectiveness for operational reporting.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Size        int
	HitRate     float64
}

// Stats reports current cache statistics.
func (c *ShardedCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	size := 0
	for _, s := range c.shards {
		s.mu.RLock()
		size += len(s.entries)
		s.mu.RUnlock()
	}

	return Stats{
		Hits:        hits,
		Misses:      misses,
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Size:        size,
		HitRate:     hitRate,
	}
}

// Close stops the background cleanup goroutine.
func (c *ShardedCache) Close() {
	close(c.stopCleanup)
	c.cleanupDone.Wait()
}
