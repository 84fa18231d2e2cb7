package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/audit"
	"github.com/Nilscreate/websitecrawltool/config"
	"github.com/Nilscreate/websitecrawltool/crawler"
	"github.com/Nilscreate/websitecrawltool/handlers"
	"github.com/Nilscreate/websitecrawltool/logging"
	"github.com/Nilscreate/websitecrawltool/middleware"
	"github.com/Nilscreate/websitecrawltool/ratelimit"
	"github.com/Nilscreate/websitecrawltool/stats"
	"github.com/Nilscreate/websitecrawltool/store"
)

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = time.Minute
	retainMonths    = 12
	cacheSize       = 100
)

func main() {
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := run(cfg); err != nil {
		logging.Log.Fatal("Server stopped", zap.Error(err))
	}
}

func openReportStore(cfg *config.Config) (audit.ReportStore, error) {
	if cfg.StoreBackend == config.BackendPostgres {
		return store.NewPostgresStore(cfg.DatabaseURL)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return store.NewBoltStore(filepath.Join(cfg.DataDir, "reports.db"))
}

// openLimiter returns the rate limiter and a function releasing its store
func openLimiter(cfg *config.Config) (*ratelimit.Limiter, func(), error) {
	if cfg.RateLimitBackend == config.BackendRedis {
		rs, err := ratelimit.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return ratelimit.New(rs, cfg.RateLimitRequests, cfg.RateLimitWindow), func() { rs.Close() }, nil
	}
	ms := ratelimit.NewMemoryStore()
	ms.StartSweeper(sweepInterval)
	return ratelimit.New(ms, cfg.RateLimitRequests, cfg.RateLimitWindow), ms.Stop, nil
}

func run(cfg *config.Config) error {
	gin.SetMode(cfg.GinMode)

	provider, err := crawler.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	reports, err := openReportStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s report store: %w", cfg.StoreBackend, err)
	}
	defer reports.Close()

	limiter, closeLimiter, err := openLimiter(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s rate limit store: %w", cfg.RateLimitBackend, err)
	}
	defer closeLimiter()

	usage, err := stats.NewStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open usage stats: %w", err)
	}
	usage.Cleanup(retainMonths)
	defer func() {
		if err := usage.Shutdown(); err != nil {
			logging.Log.Error("Failed to flush usage stats", zap.Error(err))
		}
	}()

	statistics := logging.NewStatistics(filepath.Join(cfg.DataDir, "statistics.json"), cfg.DevMode)
	defer func() {
		if err := statistics.Save(); err != nil {
			logging.Log.Error("Failed to save statistics", zap.Error(err))
		}
	}()

	svc := audit.NewService(provider, reports, audit.Options{
		DefaultLimit: cfg.CrawlPageLimit,
		Concurrency:  cfg.AnalyzeConcurrency,
		CacheTTL:     cfg.CacheTTL,
		CacheSize:    cacheSize,
		Stats:        usage,
	})
	defer svc.Close()

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.Stats(statistics))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.New(svc, statistics, usage, cfg.CrawlPageLimit).Register(r, middleware.RateLimit(limiter))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Log.Info("Server starting",
			zap.String("addr", "http://localhost:"+cfg.Port),
			zap.String("provider", cfg.CrawlProvider),
			zap.String("store", cfg.StoreBackend),
			zap.String("rateLimit", cfg.RateLimitBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case s := <-sigChan:
		logging.Log.Info("Shutting down", zap.String("signal", s.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logging.Log.Info("Server stopped")
	return nil
}
