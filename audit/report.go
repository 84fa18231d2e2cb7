package audit

import (
	"context"
	"errors"
	"time"

	"github.com/Nilscreate/websitecrawltool/analyzer"
	"github.com/Nilscreate/websitecrawltool/report"
)

// ErrNotFound is returned when no report exists for an id
var ErrNotFound = errors.New("report not found")

// ErrInvalidURL is returned for seed URLs that are not absolute http(s) URLs
var ErrInvalidURL = errors.New("invalid url")

// Report is the persisted result of one site audit
type Report struct {
	ID        string                  `json:"id"`
	URL       string                  `json:"url"`
	CreatedAt time.Time               `json:"createdAt"`
	Pages     []analyzer.PageAnalysis `json:"pages"`
	Summary   report.Summary          `json:"summary"`
	Rows      []report.SeoDataRow     `json:"rows"`
}

// Listing is the index view of a stored report
type Listing struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	CreatedAt time.Time      `json:"createdAt"`
	Summary   report.Summary `json:"summary"`
}

// Listing returns the index view of r
func (r *Report) Listing() Listing {
	return Listing{ID: r.ID, URL: r.URL, CreatedAt: r.CreatedAt, Summary: r.Summary}
}

// ReportStore persists audit reports
type ReportStore interface {
	Save(ctx context.Context, r *Report) error
	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (*Report, error)
	// List returns up to limit reports, newest first.
	List(ctx context.Context, limit int) ([]Listing, error)
	Close() error
}

// Audit progress stages
const (
	StageCrawling  = "crawling"
	StageAnalyzing = "analyzing"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// Event reports the progress of a running audit
type Event struct {
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}
