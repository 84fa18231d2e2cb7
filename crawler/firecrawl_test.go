package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type fakeFirecrawl struct {
	t         *testing.T
	statuses  []string
	data      []crawlDocument
	polls     int32
	startCode int
	lastAuth  atomic.Value
	lastBody  atomic.Value
}

func (f *fakeFirecrawl) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/crawl", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.lastAuth.Store(r.Header.Get("Authorization"))
		var req crawlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("invalid crawl request: %v", err)
		}
		f.lastBody.Store(req)

		w.Header().Set("Content-Type", "application/json")
		if f.startCode != 0 {
			w.WriteHeader(f.startCode)
			json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized: invalid token"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "id": "job-1"})
	})
	mux.HandleFunc("/v1/crawl/job-1", func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&f.polls, 1)) - 1
		status := f.statuses[len(f.statuses)-1]
		if n < len(f.statuses) {
			status = f.statuses[n]
		}
		resp := crawlStatus{Status: status, Total: 2, Completed: n}
		if status == statusCompleted {
			resp.Data = f.data
		}
		if status == statusFailed {
			resp.Error = "site unreachable"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newTestClient(url string, attempts int) *FirecrawlClient {
	return NewFirecrawlClient(FirecrawlConfig{
		BaseURL:      url,
		APIKey:       "test-key",
		PollInterval: 5 * time.Millisecond,
		PollAttempts: attempts,
	})
}

func TestFirecrawlCompleted(t *testing.T) {
	fake := &fakeFirecrawl{
		t:        t,
		statuses: []string{"scraping", "scraping", statusCompleted},
		data: []crawlDocument{
			{HTML: "<html><title>Home</title></html>", Metadata: crawlMetadata{SourceURL: "https://example.com/", ContentType: "text/html; charset=utf-8"}},
			{HTML: "%PDF-1.4", Metadata: crawlMetadata{SourceURL: "https://example.com/file.pdf", ContentType: "application/pdf"}},
			{HTML: "", Metadata: crawlMetadata{SourceURL: "https://example.com/empty"}},
			{HTML: "<html></html>", Metadata: crawlMetadata{URL: "https://example.com/about"}},
		},
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	pages, err := newTestClient(server.URL, 10).Crawl(context.Background(), "https://example.com", 5)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}

	if len(pages) != 2 {
		t.Fatalf("expected 2 HTML pages, got %d: %+v", len(pages), pages)
	}
	if pages[0].URL != "https://example.com/" || pages[1].URL != "https://example.com/about" {
		t.Errorf("unexpected page urls: %s, %s", pages[0].URL, pages[1].URL)
	}
	if got := atomic.LoadInt32(&fake.polls); got != 3 {
		t.Errorf("expected 3 polls, got %d", got)
	}
	if auth := fake.lastAuth.Load(); auth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %v", auth)
	}
	req := fake.lastBody.Load().(crawlRequest)
	if req.URL != "https://example.com" || req.Limit != 5 {
		t.Errorf("unexpected crawl request: %+v", req)
	}
	if len(req.ScrapeOptions.Formats) != 2 {
		t.Errorf("expected html and markdown formats, got %v", req.ScrapeOptions.Formats)
	}
}

func TestFirecrawlFailed(t *testing.T) {
	fake := &fakeFirecrawl{t: t, statuses: []string{"scraping", statusFailed}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	_, err := newTestClient(server.URL, 10).Crawl(context.Background(), "https://example.com", 5)
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
}

func TestFirecrawlTimeout(t *testing.T) {
	fake := &fakeFirecrawl{t: t, statuses: []string{"scraping"}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Crawl(context.Background(), "https://example.com", 5)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if got := atomic.LoadInt32(&fake.polls); got != 3 {
		t.Errorf("expected exactly 3 polls, got %d", got)
	}
}

func TestFirecrawlNoHTMLPages(t *testing.T) {
	fake := &fakeFirecrawl{
		t:        t,
		statuses: []string{statusCompleted},
		data:     []crawlDocument{{HTML: "{}", Metadata: crawlMetadata{ContentType: "application/json"}}},
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Crawl(context.Background(), "https://example.com", 5)
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("expected ErrNoPages, got %v", err)
	}
}

func TestFirecrawlProviderError(t *testing.T) {
	fake := &fakeFirecrawl{t: t, statuses: []string{statusCompleted}, startCode: http.StatusUnauthorized}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Crawl(context.Background(), "https://example.com", 5)

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", perr.StatusCode)
	}
	if perr.Message != "Unauthorized: invalid token" {
		t.Errorf("unexpected message: %q", perr.Message)
	}
}

func TestFirecrawlContextCancel(t *testing.T) {
	fake := &fakeFirecrawl{t: t, statuses: []string{"scraping"}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewFirecrawlClient(FirecrawlConfig{BaseURL: server.URL, PollInterval: time.Hour, PollAttempts: 30})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Crawl(ctx, "https://example.com", 5)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("polling did not stop on context cancellation")
	}
}
