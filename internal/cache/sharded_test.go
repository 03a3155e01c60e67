package cache

import (
	"testing"
	"time"

	"github.com/dnscore/dnscored/internal/wire"
)

func TestCacheSetAndGet(t *testing.T) {
	c := New(Config{ShardCount: 4})
	defer c.Close()

	msg := wire.Message{Header: wire.Header{ID: 1}}
	c.Set("www.example.com.", wire.TypeA, wire.ClassIN, msg, 300)

	entry, ok := c.Get("www.example.com.", wire.TypeA, wire.ClassIN)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if entry.Message.Header.ID != 1 {
		t.Errorf("unexpected cached message: %+v", entry.Message)
	}
}

func TestCacheMissOnDifferentType(t *testing.T) {
	c := New(Config{ShardCount: 4})
	defer c.Close()

	c.Set("www.example.com.", wire.TypeA, wire.ClassIN, wire.Message{}, 300)

	if _, ok := c.Get("www.example.com.", wire.TypeAAAA, wire.ClassIN); ok {
		t.Fatalf("expected miss for different qtype")
	}
}

func TestCacheCaseInsensitiveKey(t *testing.T) {
	c := New(Config{ShardCount: 4})
	defer c.Close()

	c.Set("WWW.Example.COM.", wire.TypeA, wire.ClassIN, wire.Message{}, 300)

	if _, ok := c.Get("www.example.com.", wire.TypeA, wire.ClassIN); !ok {
		t.Fatalf("expected case-insensitive hit")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(Config{ShardCount: 4})
	defer c.Close()

	c.Set("stale.example.com.", wire.TypeA, wire.ClassIN, wire.Message{}, 0)
	time.Sleep(time.Millisecond)

	if _, ok := c.Get("stale.example.com.", wire.TypeA, wire.ClassIN); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestCacheStats(t *testing.T) {
	c := New(Config{ShardCount: 4})
	defer c.Close()

	c.Set("a.example.com.", wire.TypeA, wire.ClassIN, wire.Message{}, 300)
	c.Get("a.example.com.", wire.TypeA, wire.ClassIN)
	c.Get("b.example.com.", wire.TypeA, wire.ClassIN)

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Size != 1 {
		t.Errorf("expected size 1, got %d", stats.Size)
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(Config{ShardCount: 4})
	defer c.Close()

	c.Set("a.example.com.", wire.TypeA, wire.ClassIN, wire.Message{}, 300)
	c.Delete("a.example.com.", wire.TypeA, wire.ClassIN)

	if _, ok := c.Get("a.example.com.", wire.TypeA, wire.ClassIN); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestKeyDeterministic(t *testing.T) {
	k1 := Key("www.example.com.", wire.TypeA, wire.ClassIN)
	k2 := Key("WWW.EXAMPLE.COM.", wire.TypeA, wire.ClassIN)
	if k1 != k2 {
		t.Errorf("expected case-insensitive key equality")
	}

	k3 := Key("www.example.com.", wire.TypeAAAA, wire.ClassIN)
	if k1 == k3 {
		t.Errorf("expected different keys for different qtype")
	}
}
