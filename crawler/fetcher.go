package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/Nilscreate/websitecrawltool/logging"
	"github.com/Nilscreate/websitecrawltool/metrics"
)

const (
	fetcherName      = "http"
	defaultUserAgent = "websitecrawltool/1.0 (+https://github.com/Nilscreate/websitecrawltool)"
)

// FetcherConfig configures an HTTPFetcher
type FetcherConfig struct {
	Timeout      time.Duration
	MaxPageBytes int64
	RatePerSec   float64
	UserAgent    string
}

// HTTPFetcher fetches a single page directly over HTTP. Outbound requests
// are paced by a shared token bucket.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	sizeCap   int64
	userAgent string
}

// NewHTTPFetcher creates a fetcher with pooled connections
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPageBytes <= 0 {
		cfg.MaxPageBytes = 5 << 20
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
		sizeCap:   cfg.MaxPageBytes,
		userAgent: cfg.UserAgent,
	}
}

// Crawl fetches only the seed URL; limit is ignored beyond one page
func (h *HTTPFetcher) Crawl(ctx context.Context, rawURL string, limit int) ([]Page, error) {
	metrics.ProviderRequests.WithLabelValues(fetcherName).Inc()

	page, err := h.Fetch(ctx, rawURL)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(fetcherName).Inc()
		return nil, err
	}
	return []Page{page}, nil
}

// Fetch downloads one HTML page and decodes it to UTF-8
func (h *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Page{}, &ProviderError{Op: "fetch", Message: "invalid url " + rawURL}
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return Page{}, fmt.Errorf("failed to wait for fetch slot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, &ProviderError{Op: "fetch", Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", h.userAgent)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return Page{}, &ProviderError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return Page{}, &ProviderError{Op: "fetch", StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !IsHTML(contentType) {
		logging.Log.Info("Skipping non-HTML page", zap.String("url", rawURL), zap.String("contentType", contentType))
		return Page{}, ErrNoPages
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return Page{}, &ProviderError{Op: "fetch", Message: "invalid gzip body", Err: err}
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, h.sizeCap))
	if err != nil {
		return Page{}, &ProviderError{Op: "fetch", Message: "failed to read body", Err: err}
	}

	html := decodeUTF8(data, contentType)
	if strings.TrimSpace(html) == "" {
		return Page{}, ErrNoPages
	}

	logging.Log.Debug("Fetched page",
		zap.String("url", resp.Request.URL.String()),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	return Page{
		URL:         resp.Request.URL.String(),
		HTML:        html,
		ContentType: contentType,
	}, nil
}

// decodeUTF8 converts the body to UTF-8 using the declared or sniffed
// charset, falling back to the raw bytes.
func decodeUTF8(data []byte, contentType string) string {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if utf8.Valid(data) {
			return string(data)
		}
		return string(bytes.ToValidUTF8(data, []byte("\uFFFD")))
	}
	return string(decoded)
}
