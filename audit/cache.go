package audit

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"sync"
	"time"
)

type cacheEntry struct {
	report    *Report
	timestamp time.Time
}

// Cache keeps recent reports per seed URL and page limit
type Cache struct {
	mutex   sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewCache creates a cache holding at most maxSize reports for ttl each.
// A non-positive ttl disables caching.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// cacheKey creates a unique key for the URL and limit
func cacheKey(url string, limit int) string {
	hash := md5.Sum([]byte(url + "|" + strconv.Itoa(limit)))
	return hex.EncodeToString(hash[:])
}

// Get returns a cached report that has not expired
func (c *Cache) Get(url string, limit int) (*Report, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, found := c.entries[cacheKey(url, limit)]
	if !found || c.now().Sub(entry.timestamp) >= c.ttl {
		return nil, false
	}
	return entry.report, true
}

// Put stores a report
func (c *Cache) Put(url string, limit int, r *Report) {
	if c.ttl <= 0 {
		return
	}

	c.mutex.Lock()
	c.entries[cacheKey(url, limit)] = cacheEntry{report: r, timestamp: c.now()}
	over := c.maxSize > 0 && len(c.entries) > c.maxSize
	c.mutex.Unlock()

	if over {
		c.cleanup()
	}
}

// Len returns the number of cached reports, expired ones included
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// cleanup removes expired entries, then the oldest ones above maxSize
func (c *Cache) cleanup() {
	now := c.now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			delete(c.entries, key)
		}
	}

	if c.maxSize <= 0 || len(c.entries) <= c.maxSize {
		return
	}

	type aged struct {
		key       string
		timestamp time.Time
	}
	entries := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		entries = append(entries, aged{key, entry.timestamp})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].timestamp.Before(entries[j].timestamp)
	})
	for i := 0; i < len(entries)-c.maxSize; i++ {
		delete(c.entries, entries[i].key)
	}
}

// StartCleanup runs cleanup every interval until Stop is called
func (c *Cache) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.cleanup()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine
func (c *Cache) Stop() {
	c.once.Do(func() { close(c.stop) })
}
