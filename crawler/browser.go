package crawler

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/logging"
	"github.com/Nilscreate/websitecrawltool/metrics"
)

const browserName = "browser"

// BrowserFetcher renders the seed URL in headless Chrome so that
// script-built markup is analyzed as a visitor would see it.
type BrowserFetcher struct {
	timeout   time.Duration
	settle    time.Duration
	userAgent string
}

// NewBrowserFetcher creates a fetcher that waits settle after navigation
// before capturing the DOM.
func NewBrowserFetcher(timeout, settle time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserFetcher{
		timeout:   timeout,
		settle:    settle,
		userAgent: defaultUserAgent,
	}
}

// Crawl renders only the seed URL; limit is ignored beyond one page
func (b *BrowserFetcher) Crawl(ctx context.Context, url string, limit int) ([]Page, error) {
	metrics.ProviderRequests.WithLabelValues(browserName).Inc()

	html, err := b.render(ctx, url)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(browserName).Inc()
		return nil, &ProviderError{Op: "render", Err: err}
	}
	if html == "" {
		return nil, ErrNoPages
	}
	return []Page{{URL: url, HTML: html, ContentType: "text/html"}}, nil
}

func (b *BrowserFetcher) render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(b.userAgent),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, b.timeout)
	defer cancelTimeout()

	start := time.Now()
	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}

	logging.Log.Debug("Rendered page", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))
	return html, nil
}
