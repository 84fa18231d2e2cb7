package audit

import (
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute, 10)
	now := time.Now()
	c.now = func() time.Time { return now }

	r := &Report{ID: "a"}
	c.Put("https://example.com", 5, r)

	if got, ok := c.Get("https://example.com", 5); !ok || got != r {
		t.Fatal("expected cache hit")
	}
	if _, ok := c.Get("https://example.com", 6); ok {
		t.Error("limit must be part of the key")
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("https://example.com", 5); ok {
		t.Error("expected entry to expire")
	}
	c.cleanup()
	if c.Len() != 0 {
		t.Errorf("expected expired entry removed, got %d", c.Len())
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	c := NewCache(time.Hour, 2)
	now := time.Now()
	c.now = func() time.Time { return now }

	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		c.Put(u, 1, &Report{URL: u})
		now = now.Add(time.Second)
	}

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get("https://a.example", 1); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get("https://c.example", 1); !ok {
		t.Error("newest entry should be kept")
	}
}

func TestCacheDisabled(t *testing.T) {
	c := NewCache(0, 10)
	c.Put("https://example.com", 1, &Report{})
	if _, ok := c.Get("https://example.com", 1); ok {
		t.Error("zero TTL should disable caching")
	}
}

func TestCacheKey(t *testing.T) {
	if cacheKey("https://example.com", 1) == cacheKey("https://example.com", 2) {
		t.Error("keys must differ by limit")
	}
	if len(cacheKey("https://example.com", 1)) != 32 {
		t.Error("expected hex md5 key")
	}
}
