package logging

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// popularURLLimit caps how many audited sites the dev breakdown lists
const popularURLLimit = 5

// Statistics collects request-level usage of the audit API
type Statistics struct {
	UniqueVisitors  map[string]time.Time `json:"uniqueVisitors"` // IP -> last visit
	AuditRequests   int                  `json:"auditRequests"`
	ErrorCount      int                  `json:"errorCount"`
	PopularURLs     map[string]int       `json:"popularUrls"` // site -> audits
	AverageLoadTime float64              `json:"averageLoadTime"`
	TotalLoadTime   float64              `json:"totalLoadTime"`
	RequestCount    int                  `json:"requestCount"`
	LastPersisted   time.Time            `json:"lastPersisted"`

	path    string
	devMode bool
	mutex   sync.RWMutex
}

// URLCount is one entry of the popular URL ranking
type URLCount struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// NewStatistics creates statistics persisted at path, loading any previous
// snapshot. devMode exposes the per-site breakdown.
func NewStatistics(path string, devMode bool) *Statistics {
	s := &Statistics{
		UniqueVisitors: make(map[string]time.Time),
		PopularURLs:    make(map[string]int),
		LastPersisted:  time.Now(),
		path:           path,
		devMode:        devMode,
	}
	if err := s.Load(); err != nil {
		Log.Warn("Could not load existing statistics", zap.String("path", path), zap.Error(err))
	}
	return s
}

// TrackVisitor records a unique visitor
func (s *Statistics) TrackVisitor(ip string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.UniqueVisitors[ip] = time.Now()
}

// siteKey reduces an audited URL to scheme://host/path without query or
// trailing slash. Local and API addresses yield "".
func siteKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if strings.Contains(u.Host, "localhost") ||
		strings.Contains(u.Host, "127.0.0.1") ||
		strings.Contains(strings.ToLower(u.Path), "/api/") {
		return ""
	}

	key := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		key += u.Path
	}
	return strings.TrimSuffix(key, "/")
}

// TrackAudit records one audit request and how long it took in milliseconds
func (s *Statistics) TrackAudit(target string, loadTime float64, hasError bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.AuditRequests++
	if key := siteKey(target); key != "" {
		s.PopularURLs[key]++
	}
	if hasError {
		s.ErrorCount++
	}

	s.TotalLoadTime += loadTime
	s.RequestCount++
	s.AverageLoadTime = s.TotalLoadTime / float64(s.RequestCount)
}

// UniqueVisitors24h returns the number of visitors seen in the last 24 hours
func (s *Statistics) UniqueVisitors24h() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.uniqueVisitorsSince(time.Now().Add(-24 * time.Hour))
}

func (s *Statistics) uniqueVisitorsSince(cutoff time.Time) int {
	count := 0
	for _, lastVisit := range s.UniqueVisitors {
		if lastVisit.After(cutoff) {
			count++
		}
	}
	return count
}

// TopURLs returns the n most audited sites, most frequent first
func (s *Statistics) TopURLs(n int) []URLCount {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.topURLs(n)
}

func (s *Statistics) topURLs(n int) []URLCount {
	ranking := make([]URLCount, 0, len(s.PopularURLs))
	for u, count := range s.PopularURLs {
		ranking = append(ranking, URLCount{URL: u, Count: count})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Count != ranking[j].Count {
			return ranking[i].Count > ranking[j].Count
		}
		return ranking[i].URL < ranking[j].URL
	})
	if len(ranking) > n {
		ranking = ranking[:n]
	}
	return ranking
}

// TotalRequests returns the number of tracked audit requests
func (s *Statistics) TotalRequests() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.AuditRequests
}

// ErrorRate returns the error rate as a percentage
func (s *Statistics) ErrorRate() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.errorRate()
}

func (s *Statistics) errorRate() float64 {
	if s.AuditRequests == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.AuditRequests) * 100
}

// Snapshot returns the public view of the statistics. The popular URL
// ranking is only included in development mode.
func (s *Statistics) Snapshot() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := map[string]interface{}{
		"uniqueVisitors24h": s.uniqueVisitorsSince(time.Now().Add(-24 * time.Hour)),
		"totalRequests":     s.AuditRequests,
		"errorRate":         s.errorRate(),
		"averageLoadTime":   s.AverageLoadTime,
	}
	if s.devMode {
		out["popularUrls"] = s.topURLs(popularURLLimit)
	}
	return out
}

// Save persists the statistics with a write-then-rename
func (s *Statistics) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.LastPersisted = time.Now()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create statistics directory: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write statistics: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to rename statistics file: %w", err)
	}
	return nil
}

// Load reads the statistics from disk. A missing file is not an error.
func (s *Statistics) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read statistics file: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to decode statistics: %w", err)
	}
	if s.UniqueVisitors == nil {
		s.UniqueVisitors = make(map[string]time.Time)
	}
	if s.PopularURLs == nil {
		s.PopularURLs = make(map[string]int)
	}
	return nil
}
