package app

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/nft-checkout/internal/checkout"
	"github.com/noah-isme/nft-checkout/internal/common"
	"github.com/noah-isme/nft-checkout/internal/health"
	"github.com/noah-isme/nft-checkout/internal/obs"
	"github.com/noah-isme/nft-checkout/internal/prices"
	"github.com/noah-isme/nft-checkout/internal/ratelimit"
	"github.com/noah-isme/nft-checkout/internal/security"
)

// RouterOptions toggles surfaces that depend on process-wide setup.
type RouterOptions struct {
	Tracing bool
	// Debug is mounted under /debug/pprof when set.
	Debug http.Handler
}

// Router assembles the HTTP surface.
func Router(d *Dependencies, opts RouterOptions) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(obs.RequestID)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(d.Stats.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.CORS(strings.Join(cfg.CORSAllowedOrigins, ",")))
	r.Use(security.BodyLimit{Max: security.DefaultBodyLimit}.Middleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Not Found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method Not Allowed", nil)
	})

	if d.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.MetricsRegistry, promhttp.HandlerOpts{Registry: d.MetricsRegistry}))
	}
	if opts.Debug != nil {
		r.Mount(obs.PprofPrefix, opts.Debug)
	}

	healthHandler := health.Handler{
		Registry:        d.Providers,
		DefaultStrategy: cfg.DefaultStrategy,
	}
	if d.Redis != nil {
		healthHandler.Checker = health.RedisChecker{Client: d.Redis}
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	priceHandler := &prices.Handler{Registry: d.Providers, Promotions: d.Promotions, Validate: d.Validator}
	checkoutHandler := &checkout.Handler{
		Svc:             d.Checkout,
		Registry:        d.Providers,
		DefaultStrategy: cfg.DefaultStrategy,
		Validate:        d.Validator,
	}
	limit := ratelimit.Handler{
		Limiter: d.Limiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate_limit_unavailable") },
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(limit.Middleware)
		api.Get("/health", healthHandler.API)
		api.Get("/health/live", healthHandler.Live)
		api.Get("/metrics", d.Stats.Handler)
		api.Get("/prices", priceHandler.List)
		api.Post("/checkout", checkoutHandler.Checkout)
	})
	return r
}
