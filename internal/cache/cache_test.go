package cache

import (
	"strings"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(1024)
	defer c.Close()

	if err := c.Set("http://a.test/", "<html>a</html>", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	body, ok := c.Get("http://a.test/")
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if body != "<html>a</html>" {
		t.Errorf("Expected cached body, got %q", body)
	}

	if _, ok := c.Get("http://missing.test/"); ok {
		t.Error("Expected cache miss")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", hits, misses)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(1024)
	defer c.Close()

	c.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("Expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, got %d entries", c.Len())
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	// Each entry is 1 byte of key + 40 bytes of body.
	c := NewMemoryCache(100)
	defer c.Close()

	body := strings.Repeat("x", 40)
	c.Set("a", body, time.Minute)
	c.Set("b", body, time.Minute)
	c.Get("a") // a is now most recently used
	c.Set("c", body, time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("Expected a to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Expected c to be cached")
	}
}

func TestMemoryCache_Oversized(t *testing.T) {
	c := NewMemoryCache(10)
	defer c.Close()

	c.Set("big", strings.Repeat("x", 100), time.Minute)
	if c.Len() != 0 {
		t.Errorf("Expected oversized entry to be skipped, got %d entries", c.Len())
	}
}

func TestMemoryCache_Replace(t *testing.T) {
	c := NewMemoryCache(1024)
	defer c.Close()

	c.Set("k", "old", time.Minute)
	c.Set("k", "new", time.Minute)

	if body, _ := c.Get("k"); body != "new" {
		t.Errorf("Expected replaced body, got %q", body)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", c.Len())
	}
}
