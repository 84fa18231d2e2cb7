package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/logging"
)

const (
	monthFormat   = "2006-01"
	flushInterval = 5 * time.Minute
	writeDebounce = time.Minute
)

// MonthlyStats holds the audit counters of one calendar month
type MonthlyStats struct {
	AuditsRun     int       `json:"audits_run"`
	AuditsFailed  int       `json:"audits_failed"`
	PagesAnalyzed int       `json:"pages_analyzed"`
	IssuesFound   int       `json:"issues_found"`
	CacheHits     int       `json:"cache_hits"`
	CacheMisses   int       `json:"cache_misses"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Delta is a set of counter increments applied in one step
type Delta struct {
	AuditsRun     int
	AuditsFailed  int
	PagesAnalyzed int
	IssuesFound   int
	CacheHits     int
	CacheMisses   int
}

// Storage keeps monthly counters in memory and persists them as JSON
type Storage struct {
	mutex       sync.RWMutex
	stats       map[string]*MonthlyStats // key: "YYYY-MM"
	filePath    string
	lastWrite   time.Time
	writeBuffer chan struct{}
	done        chan struct{}
	stopped     chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewStorage creates a new statistics storage under dataDir
func NewStorage(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Storage{
		stats:       make(map[string]*MonthlyStats),
		filePath:    filepath.Join(dataDir, "stats.json"),
		writeBuffer: make(chan struct{}, 1),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		now:         time.Now,
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	go s.backgroundWriter()

	return s, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return json.Unmarshal(data, &s.stats)
}

// Flush writes the counters to disk immediately
func (s *Storage) Flush() error {
	s.mutex.RLock()
	data, err := json.Marshal(s.stats)
	s.mutex.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func (s *Storage) backgroundWriter() {
	defer close(s.stopped)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.writeBuffer:
		case <-ticker.C:
		case <-s.done:
			return
		}
		if err := s.Flush(); err != nil {
			logging.Log.Error("Failed to persist stats", zap.String("path", s.filePath), zap.Error(err))
		}
	}
}

// Shutdown stops the background writer and flushes pending counters
func (s *Storage) Shutdown() error {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped
	return s.Flush()
}

func (s *Storage) currentMonth() string {
	return s.now().Format(monthFormat)
}

// requestWrite signals that a write to disk is needed
func (s *Storage) requestWrite() {
	select {
	case s.writeBuffer <- struct{}{}:
	default:
		// write already pending
	}
}

// Increment applies d to the current month
func (s *Storage) Increment(d Delta) {
	month := s.currentMonth()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	stats, exists := s.stats[month]
	if !exists {
		stats = &MonthlyStats{}
		s.stats[month] = stats
	}

	stats.AuditsRun += d.AuditsRun
	stats.AuditsFailed += d.AuditsFailed
	stats.PagesAnalyzed += d.PagesAnalyzed
	stats.IssuesFound += d.IssuesFound
	stats.CacheHits += d.CacheHits
	stats.CacheMisses += d.CacheMisses
	stats.LastUpdated = s.now()

	if s.now().Sub(s.lastWrite) > writeDebounce {
		s.requestWrite()
		s.lastWrite = s.now()
	}
}

// CurrentStats returns the counters of the current month
func (s *Storage) CurrentStats() MonthlyStats {
	month := s.currentMonth()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[month]; exists {
		return *stats
	}
	return MonthlyStats{}
}

// Cleanup drops every month older than the newest retainMonths months,
// counting the current month as the first.
func (s *Storage) Cleanup(retainMonths int) {
	if retainMonths < 1 {
		retainMonths = 1
	}
	keep := make(map[string]bool, retainMonths)
	now := s.now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 0; i < retainMonths; i++ {
		keep[first.AddDate(0, -i, 0).Format(monthFormat)] = true
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key := range s.stats {
		if !keep[key] {
			delete(s.stats, key)
		}
	}
	s.requestWrite()

	logging.Log.Debug("Pruned monthly stats", zap.Int("retainMonths", retainMonths), zap.Int("remaining", len(s.stats)))
}

// MonthlyStats returns the counters for a "YYYY-MM" month
func (s *Storage) MonthlyStats(yearMonth string) (MonthlyStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[yearMonth]; exists {
		return *stats, true
	}
	return MonthlyStats{}, false
}

// Months lists every month with counters, newest first
func (s *Storage) Months() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	months := make([]string, 0, len(s.stats))
	for month := range s.stats {
		months = append(months, month)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}
