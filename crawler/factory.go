package crawler

import (
	"fmt"
	"time"

	"github.com/Nilscreate/websitecrawltool/config"
)

const browserSettle = 500 * time.Millisecond

// NewFromConfig builds the configured provider wrapped in a circuit breaker
func NewFromConfig(cfg *config.Config) (*Breaker, error) {
	var p Provider
	switch cfg.CrawlProvider {
	case config.ProviderFirecrawl:
		if cfg.FirecrawlAPIKey == "" {
			return nil, fmt.Errorf("FIRECRAWL_API_KEY is required for the %s provider", cfg.CrawlProvider)
		}
		p = NewFirecrawlClient(FirecrawlConfig{
			BaseURL:        cfg.FirecrawlAPIURL,
			APIKey:         cfg.FirecrawlAPIKey,
			PollInterval:   cfg.CrawlPollInterval,
			PollAttempts:   cfg.CrawlPollAttempts,
			RequestTimeout: cfg.CrawlRequestTimeout,
		})
	case config.ProviderHTTP:
		p = NewHTTPFetcher(FetcherConfig{
			Timeout:      cfg.CrawlRequestTimeout,
			MaxPageBytes: cfg.MaxPageBytes,
			RatePerSec:   cfg.FetchRate,
		})
	case config.ProviderBrowser:
		p = NewBrowserFetcher(cfg.CrawlRequestTimeout, browserSettle)
	default:
		return nil, fmt.Errorf("unknown crawl provider %q", cfg.CrawlProvider)
	}
	return NewBreaker(cfg.CrawlProvider, p, cfg.BreakerFailures, cfg.BreakerReset), nil
}
