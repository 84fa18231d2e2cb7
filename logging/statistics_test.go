package logging

import (
	"path/filepath"
	"testing"
)

func TestSiteKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com/", "https://example.com"},
		{"https://example.com/blog/?page=2", "https://example.com/blog"},
		{"http://localhost:8082/x", ""},
		{"http://127.0.0.1/x", ""},
		{"https://example.com/api/audit", ""},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := siteKey(tt.in); got != tt.want {
			t.Errorf("siteKey(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestTrackAudit(t *testing.T) {
	s := NewStatistics(filepath.Join(t.TempDir(), "statistics.json"), true)

	s.TrackAudit("https://example.com/", 100, false)
	s.TrackAudit("https://example.com", 300, true)
	s.TrackAudit("https://other.example/", 200, false)

	if s.AuditRequests != 3 {
		t.Errorf("expected 3 requests, got %d", s.AuditRequests)
	}
	if s.AverageLoadTime != 200 {
		t.Errorf("expected average 200, got %f", s.AverageLoadTime)
	}
	if rate := s.ErrorRate(); rate < 33.3 || rate > 33.4 {
		t.Errorf("expected error rate ~33.3, got %f", rate)
	}

	top := s.TopURLs(1)
	if len(top) != 1 || top[0].URL != "https://example.com" || top[0].Count != 2 {
		t.Errorf("unexpected top urls: %+v", top)
	}
}

func TestSnapshotDevMode(t *testing.T) {
	dir := t.TempDir()

	prod := NewStatistics(filepath.Join(dir, "prod.json"), false)
	prod.TrackVisitor("1.2.3.4")
	prod.TrackAudit("https://example.com", 10, false)
	if _, ok := prod.Snapshot()["popularUrls"]; ok {
		t.Error("popular urls must not be exposed outside dev mode")
	}
	if got := prod.Snapshot()["uniqueVisitors24h"]; got != 1 {
		t.Errorf("expected 1 visitor, got %v", got)
	}

	dev := NewStatistics(filepath.Join(dir, "dev.json"), true)
	if _, ok := dev.Snapshot()["popularUrls"]; !ok {
		t.Error("popular urls should be exposed in dev mode")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "statistics.json")

	s := NewStatistics(path, false)
	s.TrackVisitor("1.2.3.4")
	s.TrackAudit("https://example.com", 50, true)
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewStatistics(path, false)
	if loaded.AuditRequests != 1 || loaded.ErrorCount != 1 {
		t.Errorf("unexpected loaded counters: requests=%d errors=%d", loaded.AuditRequests, loaded.ErrorCount)
	}
	if loaded.UniqueVisitors24h() != 1 {
		t.Errorf("expected 1 visitor after reload, got %d", loaded.UniqueVisitors24h())
	}
	// Average must keep working across restarts.
	loaded.TrackAudit("https://example.com", 150, false)
	if loaded.AverageLoadTime != 100 {
		t.Errorf("expected average 100, got %f", loaded.AverageLoadTime)
	}
}

func TestInitLevels(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		if err := Init(level); err != nil {
			t.Errorf("Init(%q) failed: %v", level, err)
		}
	}
	if parseLevel("bogus") != parseLevel("info") {
		t.Error("unknown levels should fall back to info")
	}
}
