package crawler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubProvider struct {
	calls int
	err   error
}

func (s *stubProvider) Crawl(ctx context.Context, url string, limit int) ([]Page, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []Page{{URL: url, HTML: "<html></html>"}}, nil
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	stub := &stubProvider{err: errors.New("boom")}
	b := NewBreaker("test-open", stub, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := b.Crawl(context.Background(), "https://example.com", 1); err == nil {
			t.Fatal("expected error from provider")
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open state, got %s", b.State())
	}

	if _, err := b.Crawl(context.Background(), "https://example.com", 1); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if stub.calls != 3 {
		t.Errorf("open circuit must not call the provider, got %d calls", stub.calls)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	stub := &stubProvider{err: errors.New("boom")}
	b := NewBreaker("test-recover", stub, 1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Crawl(context.Background(), "https://example.com", 1)
	if b.State() != StateOpen {
		t.Fatalf("expected open state, got %s", b.State())
	}

	now = now.Add(2 * time.Minute)
	stub.err = nil
	pages, err := b.Crawl(context.Background(), "https://example.com", 1)
	if err != nil || len(pages) != 1 {
		t.Fatalf("trial call should pass through, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed state after successful trial, got %s", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	stub := &stubProvider{err: errors.New("boom")}
	b := NewBreaker("test-reopen", stub, 1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Crawl(context.Background(), "https://example.com", 1)
	now = now.Add(2 * time.Minute)
	b.Crawl(context.Background(), "https://example.com", 1)

	if b.State() != StateOpen {
		t.Errorf("expected open state after failed trial, got %s", b.State())
	}
}

func TestBreakerIgnoresEmptyCrawls(t *testing.T) {
	stub := &stubProvider{err: ErrNoPages}
	b := NewBreaker("test-empty", stub, 1, time.Minute)

	for i := 0; i < 3; i++ {
		b.Crawl(context.Background(), "https://example.com", 1)
	}
	if b.State() != StateClosed {
		t.Errorf("empty crawls should not open the circuit, got %s", b.State())
	}
	if stub.calls != 3 {
		t.Errorf("expected 3 calls, got %d", stub.calls)
	}
}

func TestBreakerCancelledTrialStaysOpen(t *testing.T) {
	stub := &stubProvider{err: errors.New("boom")}
	b := NewBreaker("test-cancelled-trial", stub, 1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Crawl(context.Background(), "https://example.com", 1)
	now = now.Add(2 * time.Minute)
	stub.err = context.Canceled
	b.Crawl(context.Background(), "https://example.com", 1)

	if b.State() != StateOpen {
		t.Fatalf("expected open state after cancelled trial, got %s", b.State())
	}

	// the reset window still counts from the original failure
	stub.err = nil
	if _, err := b.Crawl(context.Background(), "https://example.com", 1); err != nil {
		t.Fatalf("next trial should pass through, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed state after successful trial, got %s", b.State())
	}
}

func TestBreakerCancelledCallsKeepFailureCount(t *testing.T) {
	stub := &stubProvider{err: errors.New("boom")}
	b := NewBreaker("test-cancelled-closed", stub, 2, time.Minute)

	b.Crawl(context.Background(), "https://example.com", 1)
	stub.err = context.Canceled
	b.Crawl(context.Background(), "https://example.com", 1)
	stub.err = errors.New("boom")
	b.Crawl(context.Background(), "https://example.com", 1)

	if b.State() != StateOpen {
		t.Errorf("cancelled calls must not reset the failure count, got %s", b.State())
	}
}
