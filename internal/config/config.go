package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/nft-checkout/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration

	DefaultStrategy pricing.Strategy
	QuoteValidity   time.Duration

	PriceCacheTTL         time.Duration
	PriceFetchTimeout     time.Duration
	PriceMaxRetries       int
	PriceRetryBase        time.Duration
	PriceBreakerThreshold int
	PriceBreakerReset     time.Duration

	OpenSeaAPIKey  string
	OpenSeaBaseURL string

	RedisURL               string
	PriceSnapshotRetention time.Duration

	RateLimitMax      int
	RateLimitWindow   time.Duration
	RateLimitStrategy string

	Obs Observability
}

// Observability groups logging, metrics and tracing settings.
type Observability struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsBuckets   string
	EnablePrometheus bool
	EnableTracing    bool
	OTLPEndpoint     string
	TracingExporter  string
	SamplingRatio    float64
	EnablePprof      bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	p := parser{k: k}
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "3001"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		QuoteValidity: p.millis("QUOTE_VALIDITY_MS", 30000),

		PriceCacheTTL:         p.millis("PRICE_CACHE_TTL_MS", 60000),
		PriceFetchTimeout:     p.millis("PRICE_FETCH_TIMEOUT_MS", 10000),
		PriceMaxRetries:       p.integer("PRICE_MAX_RETRIES", 2),
		PriceRetryBase:        p.millis("PRICE_RETRY_BASE_MS", 500),
		PriceBreakerThreshold: p.integer("PRICE_BREAKER_THRESHOLD", 5),
		PriceBreakerReset:     p.millis("PRICE_BREAKER_RESET_MS", 30000),

		OpenSeaAPIKey:  strings.TrimSpace(k.String("OPENSEA_API_KEY")),
		OpenSeaBaseURL: valueOrDefault(k.String("OPENSEA_BASE_URL"), "https://api.opensea.io/api/v2"),

		RedisURL:               strings.TrimSpace(k.String("REDIS_URL")),
		PriceSnapshotRetention: p.duration("PRICE_SNAPSHOT_RETENTION", 24*time.Hour),

		RateLimitMax:      p.integer("RATE_LIMIT_MAX", 100),
		RateLimitWindow:   p.duration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitStrategy: strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), "fixed")),

		Obs: Observability{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "nftcheckout"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			EnablePrometheus: p.boolean("OBS_ENABLE_PROMETHEUS", true),
			EnableTracing:    p.boolean("OBS_ENABLE_TRACING", false),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			SamplingRatio:    p.float("OBS_TRACING_SAMPLING_RATIO", 1.0),
			EnablePprof:      p.boolean("OBS_ENABLE_PPROF", false),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}

	strategy, err := pricing.ParseStrategy(valueOrDefault(k.String("PROMOTION_STRATEGY"), string(pricing.KindMin)))
	if err != nil {
		p.fail("PROMOTION_STRATEGY", err)
	}
	cfg.DefaultStrategy = strategy

	switch cfg.RateLimitStrategy {
	case "fixed", "sliding":
	default:
		p.fail("RATE_LIMIT_STRATEGY", fmt.Errorf("must be fixed or sliding, got %q", cfg.RateLimitStrategy))
	}
	if cfg.RateLimitStrategy == "sliding" && cfg.RedisURL == "" {
		p.fail("RATE_LIMIT_STRATEGY", errors.New("sliding requires REDIS_URL"))
	}
	if cfg.PriceBreakerThreshold < 1 {
		p.fail("PRICE_BREAKER_THRESHOLD", errors.New("must be at least 1"))
	}
	if cfg.PriceFetchTimeout <= 0 {
		p.fail("PRICE_FETCH_TIMEOUT_MS", errors.New("must be positive"))
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "3001"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// OpenSeaEnabled reports whether the OpenSea provider can be configured.
func (c *Config) OpenSeaEnabled() bool { return c.OpenSeaAPIKey != "" }

// parser collects every malformed variable so Load can report them together.
type parser struct {
	k    *koanf.Koanf
	errs []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
}

func (p *parser) raw(key string) (string, bool) {
	v := strings.TrimSpace(p.k.String(key))
	return v, v != ""
}

func (p *parser) integer(key string, fallback int) int {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, fmt.Errorf("not an integer: %q", v))
		return fallback
	}
	if n < 0 {
		p.fail(key, fmt.Errorf("must not be negative: %d", n))
		return fallback
	}
	return n
}

func (p *parser) millis(key string, fallback int) time.Duration {
	return time.Duration(p.integer(key, fallback)) * time.Millisecond
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		p.fail(key, fmt.Errorf("invalid duration: %q", v))
		return fallback
	}
	return d
}

func (p *parser) float(key string, fallback float64) float64 {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, fmt.Errorf("not a number: %q", v))
		return fallback
	}
	return f
}

func (p *parser) boolean(key string, fallback bool) bool {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	p.fail(key, fmt.Errorf("not a boolean: %q", v))
	return fallback
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
