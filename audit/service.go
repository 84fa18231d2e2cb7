package audit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Nilscreate/websitecrawltool/analyzer"
	"github.com/Nilscreate/websitecrawltool/crawler"
	"github.com/Nilscreate/websitecrawltool/logging"
	"github.com/Nilscreate/websitecrawltool/metrics"
	"github.com/Nilscreate/websitecrawltool/report"
	"github.com/Nilscreate/websitecrawltool/stats"
)

const (
	defaultPageLimit    = 10
	defaultConcurrency  = 4
	defaultCacheSize    = 500
	cacheCleanupEvery   = 5 * time.Minute
	defaultListingLimit = 20
	defaultRunTimeout   = 10 * time.Minute
)

// Options configures a Service
type Options struct {
	DefaultLimit int
	Concurrency  int
	CacheTTL     time.Duration
	CacheSize    int
	// Stats receives monthly counters; nil disables them.
	Stats *stats.Storage
	// Analyzer overrides the default analyzer.
	Analyzer *analyzer.Analyzer
	// RunTimeout bounds a shared crawl, which outlives the callers that
	// started it.
	RunTimeout time.Duration
}

// Service runs site audits: crawl, analyze every page, aggregate, persist
type Service struct {
	provider     crawler.Provider
	store        ReportStore
	analyzer     *analyzer.Analyzer
	cache        *Cache
	stats        *stats.Storage
	group        singleflight.Group
	watchers     *watchers
	defaultLimit int
	concurrency  int
	runTimeout   time.Duration
	now          func() time.Time
}

// NewService creates an audit service. store may be nil, in which case
// reports are only cached.
func NewService(provider crawler.Provider, store ReportStore, opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultPageLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analyzer.New()
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}

	s := &Service{
		provider:     provider,
		store:        store,
		analyzer:     opts.Analyzer,
		cache:        NewCache(opts.CacheTTL, opts.CacheSize),
		stats:        opts.Stats,
		watchers:     newWatchers(),
		defaultLimit: opts.DefaultLimit,
		concurrency:  opts.Concurrency,
		runTimeout:   opts.RunTimeout,
		now:          time.Now,
	}
	if opts.CacheTTL > 0 {
		s.cache.StartCleanup(cacheCleanupEvery)
	}
	return s
}

// Close stops background work. The store is owned by the caller.
func (s *Service) Close() {
	s.cache.Stop()
}

// ValidateURL checks that raw is an absolute http or https URL
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}

// Run audits the site at seedURL, crawling at most limit pages. progress,
// if not nil, receives stage events and may be called from several
// goroutines one at a time. Concurrent runs for the same URL and limit share
// one crawl; the shared crawl is not tied to any caller's context, and each
// caller stops waiting when its own ctx is done.
func (s *Service) Run(ctx context.Context, seedURL string, limit int, progress func(Event)) (*Report, error) {
	if err := ValidateURL(seedURL); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	emit := serialize(progress)

	if cached, ok := s.cache.Get(seedURL, limit); ok {
		metrics.AuditsTotal.WithLabelValues("cached").Inc()
		s.record(stats.Delta{CacheHits: 1})
		logging.Log.Debug("Audit served from cache", zap.String("url", seedURL), zap.String("report", cached.ID))
		emit(Event{Stage: StageCompleted, Message: "served from cache", Done: len(cached.Pages), Total: len(cached.Pages)})
		return cached, nil
	}
	s.record(stats.Delta{CacheMisses: 1})

	key := cacheKey(seedURL, limit)
	unwatch := s.watchers.add(key, emit)
	defer unwatch()

	ch := s.group.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
		defer cancel()
		return s.run(runCtx, seedURL, limit, func(e Event) { s.watchers.broadcast(key, e) })
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		logging.Log.Debug("Audit caller left before completion", zap.String("url", seedURL), zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}
	if res.Err != nil {
		emit(Event{Stage: StageFailed, Message: res.Err.Error()})
		return nil, res.Err
	}

	r := res.Val.(*Report)
	if res.Shared {
		logging.Log.Debug("Audit shared with concurrent request", zap.String("url", seedURL))
	}
	emit(Event{Stage: StageCompleted, Done: len(r.Pages), Total: len(r.Pages)})
	return r, nil
}

func (s *Service) run(ctx context.Context, seedURL string, limit int, emit func(Event)) (*Report, error) {
	start := s.now()

	emit(Event{Stage: StageCrawling, Message: seedURL, Total: limit})
	pages, err := s.provider.Crawl(ctx, seedURL, limit)
	if err != nil {
		s.fail(seedURL, start, err)
		return nil, fmt.Errorf("failed to crawl %s: %w", seedURL, err)
	}

	analyses, err := s.analyzePages(ctx, pages, emit)
	if err != nil {
		s.fail(seedURL, start, err)
		return nil, err
	}

	r := &Report{
		ID:        uuid.New().String(),
		URL:       seedURL,
		CreatedAt: s.now().UTC(),
		Pages:     analyses,
		Summary:   report.Summarize(analyses),
		Rows:      report.ToRows(analyses),
	}

	if s.store != nil {
		if err := s.store.Save(ctx, r); err != nil {
			s.fail(seedURL, start, err)
			return nil, fmt.Errorf("failed to save report: %w", err)
		}
	}
	s.cache.Put(seedURL, limit, r)

	elapsed := s.now().Sub(start)
	metrics.AuditsTotal.WithLabelValues("completed").Inc()
	metrics.AuditDuration.Observe(elapsed.Seconds())
	s.record(stats.Delta{
		AuditsRun:     1,
		PagesAnalyzed: len(analyses),
		IssuesFound:   r.Summary.TotalIssues,
	})

	logging.Log.Info("Audit completed",
		zap.String("url", seedURL),
		zap.String("report", r.ID),
		zap.Int("pages", len(analyses)),
		zap.Int("issues", r.Summary.TotalIssues),
		zap.Int("averageScore", r.Summary.AverageScore),
		zap.Duration("elapsed", elapsed))

	return r, nil
}

// analyzePages analyzes pages concurrently and returns the results in
// crawl order.
func (s *Service) analyzePages(ctx context.Context, pages []crawler.Page, emit func(Event)) ([]analyzer.PageAnalysis, error) {
	results := make([]analyzer.PageAnalysis, len(pages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var mu sync.Mutex
	done := 0
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.Analyze(page.URL, page.HTML)

			mu.Lock()
			done++
			emit(Event{Stage: StageAnalyzing, Message: page.URL, Done: done, Total: len(pages)})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis interrupted: %w", err)
	}
	return results, nil
}

// Analyze scores a single page without crawling or persisting it
func (s *Service) Analyze(pageURL, html string) analyzer.PageAnalysis {
	a := s.analyzer.Analyze(pageURL, html)

	metrics.PagesAnalyzed.Inc()
	metrics.PageScore.Observe(float64(a.Score))
	for _, issue := range a.Issues {
		metrics.IssuesFound.WithLabelValues(string(issue.Category), string(issue.Type)).Inc()
	}
	return a
}

// Get loads a stored report
func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	if s.store == nil {
		return nil, ErrNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// List returns the most recent stored reports
func (s *Service) List(ctx context.Context, limit int) ([]Listing, error) {
	if s.store == nil {
		return []Listing{}, nil
	}
	if limit <= 0 {
		limit = defaultListingLimit
	}
	return s.store.List(ctx, limit)
}

func (s *Service) fail(seedURL string, start time.Time, err error) {
	metrics.AuditsTotal.WithLabelValues("failed").Inc()
	metrics.AuditDuration.Observe(s.now().Sub(start).Seconds())
	s.record(stats.Delta{AuditsFailed: 1})

	level := logging.Log.Warn
	if errors.Is(err, context.Canceled) {
		level = logging.Log.Info
	}
	level("Audit failed", zap.String("url", seedURL), zap.Error(err))
}

func (s *Service) record(d stats.Delta) {
	if s.stats != nil {
		s.stats.Increment(d)
	}
}

// serialize makes progress safe to call from several goroutines
func serialize(progress func(Event)) func(Event) {
	if progress == nil {
		return func(Event) {}
	}
	var mu sync.Mutex
	return func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		progress(e)
	}
}
