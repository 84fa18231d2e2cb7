package crawler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Page is one crawled document
type Page struct {
	URL         string `json:"url"`
	HTML        string `json:"html"`
	Markdown    string `json:"markdown,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Provider returns the HTML pages reachable from a seed URL, at most limit
// of them.
type Provider interface {
	Crawl(ctx context.Context, url string, limit int) ([]Page, error)
}

var (
	// ErrTimeout means the crawl job did not finish within the polling budget
	ErrTimeout = errors.New("crawl timed out")
	// ErrJobFailed means the provider reported the crawl job as failed
	ErrJobFailed = errors.New("crawl job failed")
	// ErrNoPages means the crawl finished without any HTML page
	ErrNoPages = errors.New("no pages to analyze")
)

// ProviderError describes a failed call to a crawl provider
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsHTML reports whether a content type denotes an HTML document. An empty
// content type is accepted since some servers omit it.
func IsHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// htmlPages drops pages without markup or with a non-HTML content type
func htmlPages(pages []Page) []Page {
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.HTML) == "" || !IsHTML(p.ContentType) {
			continue
		}
		out = append(out, p)
	}
	return out
}
