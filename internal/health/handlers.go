package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/nft-checkout/internal/common"
	"github.com/noah-isme/nft-checkout/internal/prices"
	"github.com/noah-isme/nft-checkout/internal/pricing"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady toggles readiness; the server clears it while draining.
func SetReady(v bool) { ready.Store(v) }

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	// Checker is nil when the service runs without Redis.
	Checker         Checker
	RedisTimeout    time.Duration
	Registry        *prices.Registry
	DefaultStrategy pricing.Strategy
	Now             func() time.Time
}

// Status is the body of GET /api/health.
type Status struct {
	Status           string `json:"status"`
	OpenSeaAvailable bool   `json:"openSeaAvailable"`
	DefaultStrategy  string `json:"defaultStrategy"`
	Timestamp        string `json:"timestamp"`
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	status := map[string]string{"status": "ok", "redis": "disabled"}
	code := http.StatusOK
	if h.Checker != nil {
		status["redis"] = "ok"
		if err := h.Checker.PingRedis(r.Context(), h.redisTimeout()); err != nil {
			status["redis"] = err.Error()
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	common.JSON(w, code, status)
}

// API reports service status with the provider and strategy configuration.
func (h Handler) API(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	strategy := h.DefaultStrategy
	if strategy == nil {
		strategy = pricing.Min{}
	}
	common.JSON(w, http.StatusOK, Status{
		Status:           "ok",
		OpenSeaAvailable: h.Registry != nil && h.Registry.Available(prices.ProviderOpenSea),
		DefaultStrategy:  string(strategy.Name()),
		Timestamp:        prices.FormatTime(now),
	})
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}

// RedisChecker probes Redis with PING.
type RedisChecker struct {
	Client redis.UniversalClient
}

// PingRedis implements Checker.
func (c RedisChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.Client == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Client.Ping(ctx).Err()
}
