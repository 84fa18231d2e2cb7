package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Audit outcomes, labelled by "completed", "failed" or "cached".
var AuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "seoaudit_audits_total",
	Help: "Total number of site audits by outcome",
}, []string{"outcome"})

// Time spent on one audit, crawl included.
var AuditDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "seoaudit_audit_duration_seconds",
	Help:    "Time taken to crawl and analyze a site",
	Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
})

// Page analysis metrics
var (
	PagesAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seoaudit_pages_analyzed_total",
		Help: "Total number of pages analyzed",
	})

	PageScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seoaudit_page_score",
		Help:    "Distribution of page SEO scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	IssuesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seoaudit_issues_total",
		Help: "Total number of SEO issues found by category and type",
	}, []string{"category", "type"})
)

// Crawl provider metrics
var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seoaudit_provider_requests_total",
		Help: "Total number of crawl provider calls",
	}, []string{"provider"})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seoaudit_provider_errors_total",
		Help: "Total number of failed crawl provider calls",
	}, []string{"provider"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "seoaudit_circuit_breaker_state",
		Help: "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
	}, []string{"service"})
)

// Requests rejected by the API rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Name: "seoaudit_rate_limited_total",
	Help: "Total number of requests rejected by the rate limiter",
})
