package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/logging"
)

// Crawl providers
const (
	ProviderFirecrawl = "firecrawl"
	ProviderHTTP      = "http"
	ProviderBrowser   = "browser"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Config holds every runtime setting of the service and CLI
type Config struct {
	Port     string `mapstructure:"PORT"`
	GinMode  string `mapstructure:"GIN_MODE"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	DevMode  bool   `mapstructure:"DEV_MODE"`
	DataDir  string `mapstructure:"DATA_DIR"`

	// Crawl provider
	CrawlProvider       string        `mapstructure:"CRAWL_PROVIDER"`
	FirecrawlAPIURL     string        `mapstructure:"FIRECRAWL_API_URL"`
	FirecrawlAPIKey     string        `mapstructure:"FIRECRAWL_API_KEY"`
	CrawlPageLimit      int           `mapstructure:"CRAWL_PAGE_LIMIT"`
	CrawlPollInterval   time.Duration `mapstructure:"CRAWL_POLL_INTERVAL"`
	CrawlPollAttempts   int           `mapstructure:"CRAWL_POLL_ATTEMPTS"`
	CrawlRequestTimeout time.Duration `mapstructure:"CRAWL_REQUEST_TIMEOUT"`
	FetchRate           float64       `mapstructure:"FETCH_RATE"`
	MaxPageBytes        int64         `mapstructure:"MAX_PAGE_BYTES"`
	BreakerFailures     int           `mapstructure:"BREAKER_FAILURES"`
	BreakerReset        time.Duration `mapstructure:"BREAKER_RESET"`

	// Rate limiting
	RateLimitRequests int           `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitBackend  string        `mapstructure:"RATE_LIMIT_BACKEND"`

	// Redis
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Report storage
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`

	// Audit service
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL"`
	AnalyzeConcurrency int           `mapstructure:"ANALYZE_CONCURRENCY"`
}

var defaults = map[string]interface{}{
	"PORT":                  "8082",
	"GIN_MODE":              "release",
	"LOG_LEVEL":             "info",
	"DEV_MODE":              false,
	"DATA_DIR":              "data",
	"CRAWL_PROVIDER":        ProviderFirecrawl,
	"FIRECRAWL_API_URL":     "https://api.firecrawl.dev",
	"FIRECRAWL_API_KEY":     "",
	"CRAWL_PAGE_LIMIT":      10,
	"CRAWL_POLL_INTERVAL":   "2s",
	"CRAWL_POLL_ATTEMPTS":   30,
	"CRAWL_REQUEST_TIMEOUT": "30s",
	"FETCH_RATE":            2.0,
	"MAX_PAGE_BYTES":        5 << 20,
	"BREAKER_FAILURES":      5,
	"BREAKER_RESET":         "30s",
	"RATE_LIMIT_REQUESTS":   10,
	"RATE_LIMIT_WINDOW":     "1m",
	"RATE_LIMIT_BACKEND":    BackendMemory,
	"REDIS_ADDR":            "localhost:6379",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"STORE_BACKEND":         BackendBolt,
	"DATABASE_URL":          "",
	"CACHE_TTL":             "30m",
	"ANALYZE_CONCURRENCY":   4,
}

// LoadEnvFiles loads .env.development, falling back to .env. Variables
// already present in the environment win.
func LoadEnvFiles() {
	if err := godotenv.Load(".env.development"); err != nil {
		if err := godotenv.Load(); err != nil {
			logging.Log.Debug("No .env file found, using environment variables")
		}
	}
}

// Load reads defaults, an optional CONFIG_FILE and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		logging.Log.Info("Loaded config file", zap.String("path", file))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects unknown backends and non-positive limits
func (c *Config) Validate() error {
	switch c.CrawlProvider {
	case ProviderFirecrawl, ProviderHTTP, ProviderBrowser:
	default:
		return fmt.Errorf("invalid CRAWL_PROVIDER %q", c.CrawlProvider)
	}
	switch c.RateLimitBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("invalid RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}
	switch c.StoreBackend {
	case BackendBolt, BackendPostgres:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StoreBackend == BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres store")
	}

	positive := []struct {
		key   string
		value int64
	}{
		{"CRAWL_PAGE_LIMIT", int64(c.CrawlPageLimit)},
		{"CRAWL_POLL_ATTEMPTS", int64(c.CrawlPollAttempts)},
		{"CRAWL_POLL_INTERVAL", int64(c.CrawlPollInterval)},
		{"MAX_PAGE_BYTES", c.MaxPageBytes},
		{"BREAKER_FAILURES", int64(c.BreakerFailures)},
		{"BREAKER_RESET", int64(c.BreakerReset)},
		{"RATE_LIMIT_REQUESTS", int64(c.RateLimitRequests)},
		{"RATE_LIMIT_WINDOW", int64(c.RateLimitWindow)},
		{"ANALYZE_CONCURRENCY", int64(c.AnalyzeConcurrency)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive", p.key)
		}
	}
	if c.FetchRate <= 0 {
		return fmt.Errorf("FETCH_RATE must be positive")
	}
	return nil
}
