package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/logging"
	"github.com/Nilscreate/websitecrawltool/metrics"
)

const firecrawlName = "firecrawl"

// Firecrawl job statuses
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// FirecrawlConfig configures a FirecrawlClient
type FirecrawlConfig struct {
	BaseURL        string
	APIKey         string
	PollInterval   time.Duration
	PollAttempts   int
	RequestTimeout time.Duration
}

// FirecrawlClient runs crawl jobs against the Firecrawl REST API: it
// submits a job and polls it until a terminal status.
type FirecrawlClient struct {
	client       *resty.Client
	pollInterval time.Duration
	pollAttempts int
}

type crawlRequest struct {
	URL           string        `json:"url"`
	Limit         int           `json:"limit"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
}

type scrapeOptions struct {
	Formats []string `json:"formats"`
}

type crawlStarted struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error"`
}

type crawlStatus struct {
	Status    string          `json:"status"`
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Data      []crawlDocument `json:"data"`
	Error     string          `json:"error"`
}

type crawlDocument struct {
	HTML     string        `json:"html"`
	Markdown string        `json:"markdown"`
	Metadata crawlMetadata `json:"metadata"`
}

type crawlMetadata struct {
	SourceURL   string `json:"sourceURL"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	StatusCode  int    `json:"statusCode"`
}

type apiError struct {
	Error string `json:"error"`
}

// NewFirecrawlClient creates a client for the given API endpoint
func NewFirecrawlClient(cfg FirecrawlConfig) *FirecrawlClient {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 30
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &FirecrawlClient{
		client:       client,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
	}
}

// Crawl submits a crawl job and waits for its pages
func (f *FirecrawlClient) Crawl(ctx context.Context, url string, limit int) ([]Page, error) {
	metrics.ProviderRequests.WithLabelValues(firecrawlName).Inc()

	pages, err := f.crawl(ctx, url, limit)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(firecrawlName).Inc()
		return nil, err
	}
	return pages, nil
}

func (f *FirecrawlClient) crawl(ctx context.Context, url string, limit int) ([]Page, error) {
	id, err := f.startCrawl(ctx, url, limit)
	if err != nil {
		return nil, err
	}
	logging.Log.Info("Crawl job submitted", zap.String("url", url), zap.String("job", id), zap.Int("limit", limit))

	for attempt := 1; attempt <= f.pollAttempts; attempt++ {
		if err := sleepContext(ctx, f.pollInterval); err != nil {
			return nil, err
		}

		status, err := f.jobStatus(ctx, id)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case statusCompleted:
			pages := htmlPages(toPages(status.Data))
			logging.Log.Info("Crawl job completed",
				zap.String("job", id),
				zap.Int("documents", len(status.Data)),
				zap.Int("htmlPages", len(pages)))
			if len(pages) == 0 {
				return nil, ErrNoPages
			}
			return pages, nil
		case statusFailed:
			msg := status.Error
			if msg == "" {
				msg = "provider reported failure"
			}
			return nil, fmt.Errorf("%w: %s", ErrJobFailed, msg)
		}

		logging.Log.Debug("Crawl job in progress",
			zap.String("job", id),
			zap.String("status", status.Status),
			zap.Int("completed", status.Completed),
			zap.Int("total", status.Total),
			zap.Int("attempt", attempt))
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrTimeout, f.pollAttempts)
}

func (f *FirecrawlClient) startCrawl(ctx context.Context, url string, limit int) (string, error) {
	var started crawlStarted
	var apiErr apiError

	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(crawlRequest{
			URL:           url,
			Limit:         limit,
			ScrapeOptions: scrapeOptions{Formats: []string{"html", "markdown"}},
		}).
		SetResult(&started).
		SetError(&apiErr).
		Post("/v1/crawl")

	if err != nil {
		return "", &ProviderError{Op: "start crawl", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &ProviderError{Op: "start crawl", StatusCode: resp.StatusCode(), Message: errorMessage(apiErr, resp)}
	}
	if !started.Success || started.ID == "" {
		msg := started.Error
		if msg == "" {
			msg = "missing job id"
		}
		return "", &ProviderError{Op: "start crawl", StatusCode: resp.StatusCode(), Message: msg}
	}
	return started.ID, nil
}

func (f *FirecrawlClient) jobStatus(ctx context.Context, id string) (*crawlStatus, error) {
	var status crawlStatus
	var apiErr apiError

	resp, err := f.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&status).
		SetError(&apiErr).
		Get("/v1/crawl/{id}")

	if err != nil {
		return nil, &ProviderError{Op: "poll crawl", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &ProviderError{Op: "poll crawl", StatusCode: resp.StatusCode(), Message: errorMessage(apiErr, resp)}
	}
	return &status, nil
}

func errorMessage(apiErr apiError, resp *resty.Response) string {
	if apiErr.Error != "" {
		return apiErr.Error
	}
	return resp.String()
}

func toPages(docs []crawlDocument) []Page {
	pages := make([]Page, 0, len(docs))
	for _, d := range docs {
		url := d.Metadata.SourceURL
		if url == "" {
			url = d.Metadata.URL
		}
		pages = append(pages, Page{
			URL:         url,
			HTML:        d.HTML,
			Markdown:    d.Markdown,
			ContentType: d.Metadata.ContentType,
		})
	}
	return pages
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
