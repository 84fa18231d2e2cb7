package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Nilscreate/websitecrawltool/analyzer"
	"github.com/Nilscreate/websitecrawltool/audit"
	"github.com/Nilscreate/websitecrawltool/config"
	"github.com/Nilscreate/websitecrawltool/crawler"
	"github.com/Nilscreate/websitecrawltool/export"
	"github.com/Nilscreate/websitecrawltool/ioformats"
	"github.com/Nilscreate/websitecrawltool/logging"
	"github.com/Nilscreate/websitecrawltool/report"
)

type seedResult struct {
	URL      string `json:"url"`
	ReportID string `json:"reportId,omitempty"`
	Pages    int    `json:"pages"`
	Error    string `json:"error,omitempty"`
}

type combinedReport struct {
	Seeds   []seedResult            `json:"seeds"`
	Summary report.Summary          `json:"summary"`
	Pages   []analyzer.PageAnalysis `json:"pages"`
	Rows    []report.SeoDataRow     `json:"rows"`
}

type options struct {
	seed        string
	input       string
	limit       int
	provider    string
	concurrency int
	csvOut      string
	summaryOut  string
	jsonOut     string
	ndjsonOut   string
}

func main() {
	var o options
	flag.StringVar(&o.seed, "url", "", "site to audit")
	flag.StringVar(&o.input, "input", "", "input file (csv with 'url' column or ndjson)")
	flag.IntVar(&o.limit, "limit", 0, "maximum pages per site (default CRAWL_PAGE_LIMIT)")
	flag.StringVar(&o.provider, "provider", "", "crawl provider: firecrawl, http or browser (default CRAWL_PROVIDER)")
	flag.IntVar(&o.concurrency, "concurrency", 4, "sites audited in parallel")
	flag.StringVar(&o.csvOut, "csv", "", "write the CSV export to this file, - for stdout")
	flag.StringVar(&o.summaryOut, "summary", "", "write the text summary to this file, - for stdout")
	flag.StringVar(&o.jsonOut, "json", "", "write the combined JSON report to this file, - for stdout")
	flag.StringVar(&o.ndjsonOut, "ndjson", "", "write one JSON row per page to this file, - for stdout")
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintln(os.Stderr, "seoaudit:", err)
		os.Exit(1)
	}
}

func run(o options) error {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.InitOutput(cfg.LogLevel, "stderr"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync()

	seeds, err := seedURLs(o.seed, o.input)
	if err != nil {
		return err
	}
	if o.provider != "" {
		cfg.CrawlProvider = o.provider
	}
	limit := o.limit
	if limit <= 0 {
		limit = cfg.CrawlPageLimit
	}
	concurrency := o.concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if o.csvOut == "" && o.summaryOut == "" && o.jsonOut == "" && o.ndjsonOut == "" {
		o.summaryOut = "-"
	}

	crawl, err := crawler.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	svc := audit.NewService(crawl, nil, audit.Options{
		DefaultLimit: cfg.CrawlPageLimit,
		Concurrency:  cfg.AnalyzeConcurrency,
	})
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := make([]seedResult, len(seeds))
	reports := make([]*audit.Report, len(seeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, u := range seeds {
		i, u := i, u
		g.Go(func() error {
			r, err := svc.Run(gctx, u, limit, nil)
			if err != nil {
				logging.Log.Warn("Site audit failed", zap.String("url", u), zap.Error(err))
				results[i] = seedResult{URL: u, Error: err.Error()}
				return nil
			}
			results[i] = seedResult{URL: u, ReportID: r.ID, Pages: len(r.Pages)}
			reports[i] = r
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	var pages []analyzer.PageAnalysis
	for _, r := range reports {
		if r != nil {
			pages = append(pages, r.Pages...)
		}
	}
	if len(pages) == 0 {
		return fmt.Errorf("no site could be audited")
	}

	combined := combinedReport{
		Seeds:   results,
		Summary: report.Summarize(pages),
		Pages:   pages,
		Rows:    report.ToRows(pages),
	}
	logging.Log.Info("Audit finished",
		zap.Int("sites", len(seeds)),
		zap.Int("pages", combined.Summary.TotalPages),
		zap.Int("issues", combined.Summary.TotalIssues),
		zap.Int("averageScore", combined.Summary.AverageScore))

	return writeReports(o, combined)
}

func writeReports(o options, combined combinedReport) error {
	if err := writeOutput(o.csvOut, func(w io.Writer) error {
		_, err := io.WriteString(w, export.ToCSV(combined.Rows))
		return err
	}); err != nil {
		return err
	}
	if err := writeOutput(o.summaryOut, func(w io.Writer) error {
		_, err := io.WriteString(w, export.ToSummaryText(combined.Rows))
		return err
	}); err != nil {
		return err
	}
	if err := writeOutput(o.ndjsonOut, func(w io.Writer) error {
		return ioformats.WriteNDJSON(w, combined.Rows)
	}); err != nil {
		return err
	}
	return writeOutput(o.jsonOut, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(combined)
	})
}

func seedURLs(seed, in string) ([]string, error) {
	var seeds []string
	if seed != "" {
		seeds = append(seeds, seed)
	}
	if in != "" {
		urls, err := ioformats.ReadURLs(in)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		seeds = append(seeds, urls...)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("missing -url or -input")
	}
	return seeds, nil
}

// writeOutput writes to path, or stdout for "-"; an empty path is skipped
func writeOutput(path string, write func(io.Writer) error) error {
	switch path {
	case "":
		return nil
	case "-":
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
