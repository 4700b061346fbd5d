package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nft-checkout/internal/cache"
	"github.com/noah-isme/nft-checkout/internal/checkout"
	"github.com/noah-isme/nft-checkout/internal/config"
	"github.com/noah-isme/nft-checkout/internal/lock"
	"github.com/noah-isme/nft-checkout/internal/obs"
	"github.com/noah-isme/nft-checkout/internal/prices"
	"github.com/noah-isme/nft-checkout/internal/promotion"
	"github.com/noah-isme/nft-checkout/internal/ratelimit"
	"github.com/noah-isme/nft-checkout/internal/resilience"
)

// Dependencies enumerates the services shared by the HTTP server and the CLI.
type Dependencies struct {
	Config          *config.Config
	Logger          zerolog.Logger
	Redis           redis.UniversalClient
	Validator       *validator.Validate
	Limiter         ratelimit.Limiter
	MetricsRegistry *prometheus.Registry
	HTTPMetrics     *obs.HTTPMetrics
	Stats           *obs.RequestStats
	Promotions      []promotion.Promotion
	Providers       *prices.Registry
	Checkout        *checkout.Service
}

// Options adjust how New wires external resources.
type Options struct {
	// Redis replaces the client built from cfg.RedisURL.
	Redis redis.UniversalClient
	// OpenSeaOptions are passed to the OpenSea source.
	OpenSeaOptions []prices.OpenSeaOption
	Now            func() time.Time
}

// New builds every dependency described by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	d := &Dependencies{
		Config:          cfg,
		Logger:          logger,
		Validator:       validator.New(validator.WithRequiredStructEnabled()),
		MetricsRegistry: obs.NewRegistry(),
		Stats:           obs.NewRequestStats(now),
		Promotions:      promotion.Defaults(),
	}
	if cfg.Obs.EnablePrometheus {
		d.HTTPMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), d.MetricsRegistry)
	}

	d.Redis = opts.Redis
	if d.Redis == nil && cfg.RedisURL != "" {
		client, err := NewRedis(ctx, cfg.RedisURL, cfg.Obs.EnablePrometheus, logger)
		if err != nil {
			return nil, err
		}
		d.Redis = client
	}

	limiter, err := ratelimit.New(cfg.RateLimitStrategy, d.Redis, cache.KeyRateLimit())
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	d.Limiter = limiter

	d.Providers = d.newProviders(opts)
	d.Checkout = checkout.NewService(d.Promotions, cfg.QuoteValidity, logger)
	return d, nil
}

// NewRedis connects to url and instruments the client with OpenTelemetry.
func NewRedis(ctx context.Context, url string, withMetrics bool, logger zerolog.Logger) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if withMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (d *Dependencies) newProviders(opts Options) *prices.Registry {
	cfg := d.Config
	acqCfg := prices.Config{
		CacheTTL:         cfg.PriceCacheTTL,
		FetchTimeout:     cfg.PriceFetchTimeout,
		MaxRetries:       cfg.PriceMaxRetries,
		RetryBaseDelay:   cfg.PriceRetryBase,
		FailureThreshold: cfg.PriceBreakerThreshold,
		ResetTimeout:     cfg.PriceBreakerReset,
	}
	shared := []prices.Option{
		prices.WithLogger(d.Logger),
		prices.WithMetrics(prices.NewMetrics(cfg.Obs.MetricsNamespace, d.MetricsRegistry)),
		prices.WithBreakerMetrics(resilience.NewMetrics(cfg.Obs.MetricsNamespace, d.MetricsRegistry)),
	}
	if opts.Now != nil {
		shared = append(shared, prices.WithClock(opts.Now))
	}
	if d.Redis != nil {
		shared = append(shared,
			prices.WithStore(prices.NewRedisStore(d.Redis, cfg.PriceSnapshotRetention)),
			prices.WithRefreshLock(lock.Locker{Client: d.Redis}),
		)
	}

	providers := []prices.Provider{prices.NewAcquirer(prices.NewMockSource(nil), acqCfg, shared...)}
	if cfg.OpenSeaEnabled() {
		seaOpts := append([]prices.OpenSeaOption{prices.WithBaseURL(cfg.OpenSeaBaseURL)}, opts.OpenSeaOptions...)
		providers = append(providers, prices.NewAcquirer(prices.NewOpenSeaSource(cfg.OpenSeaAPIKey, seaOpts...), acqCfg, shared...))
	}
	return prices.NewRegistry(prices.ProviderMock, providers...)
}

// Close releases external connections.
func (d *Dependencies) Close() error {
	if d == nil || d.Redis == nil {
		return nil
	}
	return d.Redis.Close()
}
