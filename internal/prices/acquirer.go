package prices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/nft-checkout/internal/cache"
	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
	"github.com/noah-isme/nft-checkout/internal/resilience"
)

var acquirerNopLogger = zerolog.Nop()

// Config tunes an Acquirer.
type Config struct {
	// CacheTTL is how long a snapshot is served without refetching. Zero disables caching.
	CacheTTL     time.Duration
	FetchTimeout time.Duration
	// MaxRetries is the number of extra attempts per product.
	MaxRetries       int
	RetryBaseDelay   time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:         60 * time.Second,
		FetchTimeout:     10 * time.Second,
		MaxRetries:       2,
		RetryBaseDelay:   500 * time.Millisecond,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// RefreshLocker serialises refreshes across replicas.
type RefreshLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Acquirer turns a per-product Source into a whole-catalog Provider. It caches
// the last snapshot, collapses concurrent refreshes into one batch, retries
// each product with backoff, and trips a breaker after consecutive batches in
// which every product failed.
type Acquirer struct {
	source         Source
	cfg            Config
	breaker        *resilience.Breaker
	breakerMetrics *resilience.Metrics
	store          SnapshotStore
	locker         RefreshLocker
	metrics        *Metrics
	logger         *zerolog.Logger
	now            func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	cached *Snapshot
}

// Option customises an Acquirer.
type Option func(*Acquirer)

// WithStore persists snapshots so other replicas and restarts can reuse them.
func WithStore(store SnapshotStore) Option {
	return func(a *Acquirer) { a.store = store }
}

// WithRefreshLock serialises refreshes across replicas sharing a store.
func WithRefreshLock(locker RefreshLocker) Option {
	return func(a *Acquirer) { a.locker = locker }
}

// WithMetrics records batch and item outcomes.
func WithMetrics(m *Metrics) Option {
	return func(a *Acquirer) { a.metrics = m }
}

// WithBreakerMetrics exports the breaker state.
func WithBreakerMetrics(m *resilience.Metrics) Option {
	return func(a *Acquirer) { a.breakerMetrics = m }
}

// WithLogger sets the fallback logger used when the request context has none.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Acquirer) { a.logger = &logger }
}

// WithClock replaces time.Now for both the cache and the breaker.
func WithClock(now func() time.Time) Option {
	return func(a *Acquirer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAcquirer wraps source.
func NewAcquirer(source Source, cfg Config, opts ...Option) *Acquirer {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	a := &Acquirer{source: source, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	a.breaker = resilience.NewBreaker(cfg.FailureThreshold, cfg.ResetTimeout).
		WithTarget("prices_" + source.Name()).
		WithClock(a.now)
	if a.logger != nil {
		a.breaker.WithLogger(*a.logger)
	}
	if a.breakerMetrics != nil {
		a.breaker.WithMetrics(a.breakerMetrics)
	}
	return a
}

// Name implements Provider.
func (a *Acquirer) Name() string { return a.source.Name() }

// Breaker exposes the breaker guarding the source.
func (a *Acquirer) Breaker() *resilience.Breaker { return a.breaker }

// Snapshot implements Provider. Callers that arrive while a refresh is in
// flight share its result; cancelling ctx abandons the wait but not the batch.
func (a *Acquirer) Snapshot(ctx context.Context) (Snapshot, error) {
	if snap, ok := a.fresh(); ok {
		a.metrics.cacheHit(a.Name())
		return snap.Clone(), nil
	}
	batchCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan("batch", func() (any, error) {
		return a.refresh(batchCtx)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot).Clone(), nil
	}
}

// Price implements Provider.
func (a *Acquirer) Price(ctx context.Context, code catalog.ProductCode) (money.Money, error) {
	return PriceOf(ctx, a, code)
}

func (a *Acquirer) refresh(ctx context.Context) (Snapshot, error) {
	if snap, ok := a.fresh(); ok {
		return snap, nil
	}
	if a.locker == nil {
		return a.acquire(ctx)
	}
	var (
		snap Snapshot
		ran  bool
	)
	// Waiting covers one full batch of the current holder; acquire then
	// adopts whatever it stored.
	ttl := a.lockTTL()
	waitCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()
	err := a.locker.WithLock(waitCtx, cache.KeyPriceRefreshLock(a.Name()), ttl, func(context.Context) error {
		ran = true
		var err error
		snap, err = a.acquire(ctx)
		return err
	})
	if ran {
		return snap, err
	}
	a.log(ctx).Warn().Err(err).Str("provider", a.Name()).Msg("price_refresh_lock_failed")
	return a.acquire(ctx)
}

func (a *Acquirer) acquire(ctx context.Context) (Snapshot, error) {
	name := a.Name()
	stored, haveStored := a.loadStored(ctx)
	if haveStored && a.isFresh(stored) {
		a.setCached(stored)
		a.metrics.batch(name, OutcomeStoreAdopted)
		return stored, nil
	}
	stale := func() (Snapshot, bool) {
		mem, haveMem := a.cachedAny()
		switch {
		case haveMem && haveStored:
			if stored.FetchedAt.After(mem.FetchedAt) {
				return stored, true
			}
			return mem, true
		case haveMem:
			return mem, true
		case haveStored:
			return stored, true
		}
		return Snapshot{}, false
	}

	logger := a.log(ctx)
	if !a.breaker.Allow(ctx) {
		if snap, ok := stale(); ok {
			logger.Warn().Str("provider", name).Time("fetched_at", snap.FetchedAt).Msg("price_fetch_circuit_open_stale")
			a.metrics.batch(name, OutcomeCircuitOpenStale)
			return snap, nil
		}
		a.metrics.batch(name, OutcomeCircuitOpen)
		return Snapshot{}, ErrCircuitOpen
	}

	start := a.now()
	prices, errs := a.fetchAll(ctx)
	a.metrics.duration(name, float64(a.now().Sub(start).Microseconds())/1000)

	if len(prices) == 0 {
		a.breaker.Report(ctx, false)
		cause := fmt.Errorf("%w: %w", ErrAcquisitionFailed, errors.Join(errs...))
		if snap, ok := stale(); ok {
			logger.Warn().Err(cause).Str("provider", name).Time("fetched_at", snap.FetchedAt).Msg("price_fetch_all_failed_stale")
			a.metrics.batch(name, OutcomeFailedStale)
			return snap, nil
		}
		a.metrics.batch(name, OutcomeFailed)
		return Snapshot{}, cause
	}

	outcome := OutcomeFull
	if len(errs) > 0 {
		if prev, ok := stale(); ok {
			merged := 0
			for code, price := range prev.Prices {
				if _, have := prices[code]; !have {
					prices[code] = price
					merged++
				}
			}
			outcome = OutcomePartialMerged
			logger.Warn().Err(errors.Join(errs...)).Str("provider", name).Int("failed", len(errs)).Int("merged", merged).Msg("price_fetch_partial_merged")
		} else {
			outcome = OutcomePartial
			logger.Warn().Err(errors.Join(errs...)).Str("provider", name).Int("failed", len(errs)).Msg("price_fetch_partial_unmerged")
		}
	}
	a.breaker.Report(ctx, true)

	snap := Snapshot{Prices: prices, FetchedAt: a.now()}
	a.setCached(snap)
	if a.store != nil {
		if err := a.store.Save(ctx, name, snap); err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("price_snapshot_save_failed")
		}
	}
	a.metrics.batch(name, outcome)
	return snap, nil
}

func (a *Acquirer) fetchAll(ctx context.Context) (map[catalog.ProductCode]money.Money, []error) {
	var (
		mu     sync.Mutex
		g      errgroup.Group
		prices = make(map[catalog.ProductCode]money.Money)
		errs   []error
	)
	for _, code := range catalog.All() {
		g.Go(func() error {
			price, err := a.fetchOne(ctx, code)
			a.metrics.item(a.Name(), string(code), err)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", code, err))
				return nil
			}
			prices[code] = price
			return nil
		})
	}
	_ = g.Wait()
	return prices, errs
}

func (a *Acquirer) fetchOne(ctx context.Context, code catalog.ProductCode) (money.Money, error) {
	logger := a.log(ctx)
	var price money.Money
	err := resilience.Retry(ctx, resilience.RetryPolicy{
		MaxRetries:     a.cfg.MaxRetries,
		BaseDelay:      a.cfg.RetryBaseDelay,
		AttemptTimeout: a.cfg.FetchTimeout,
		MaxDelay:       a.cfg.FetchTimeout,
		OnRetry: func(retry int, delay time.Duration, err error) {
			logger.Debug().Err(err).
				Str("provider", a.Name()).
				Str("product", string(code)).
				Int("retry", retry).
				Dur("delay", delay).
				Msg("price_fetch_retry")
		},
	}, func(callCtx context.Context) error {
		p, err := a.source.FetchPrice(callCtx, code)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	return price, err
}

func (a *Acquirer) loadStored(ctx context.Context) (Snapshot, bool) {
	if a.store == nil {
		return Snapshot{}, false
	}
	snap, ok, err := a.store.Load(ctx, a.Name())
	if err != nil {
		a.log(ctx).Warn().Err(err).Str("provider", a.Name()).Msg("price_snapshot_load_failed")
		return Snapshot{}, false
	}
	if !ok || len(snap.Prices) == 0 {
		return Snapshot{}, false
	}
	return snap, true
}

func (a *Acquirer) fresh() (Snapshot, bool) {
	snap, ok := a.cachedAny()
	if !ok || !a.isFresh(snap) {
		return Snapshot{}, false
	}
	return snap, true
}

func (a *Acquirer) isFresh(snap Snapshot) bool {
	return a.cfg.CacheTTL > 0 && a.now().Sub(snap.FetchedAt) < a.cfg.CacheTTL
}

func (a *Acquirer) cachedAny() (Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cached == nil {
		return Snapshot{}, false
	}
	return *a.cached, true
}

func (a *Acquirer) setCached(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cached = &snap
}

// lockTTL covers a full batch: every attempt timing out plus the wait between
// them, where a Retry-After hint may stretch a wait up to FetchTimeout.
func (a *Acquirer) lockTTL() time.Duration {
	attempts := time.Duration(a.cfg.MaxRetries + 1)
	waits := time.Duration(0)
	for n := 1; n <= a.cfg.MaxRetries; n++ {
		waits += max(resilience.Backoff(a.cfg.RetryBaseDelay, n, 0), a.cfg.FetchTimeout)
	}
	return a.cfg.FetchTimeout*attempts + waits + 5*time.Second
}

func (a *Acquirer) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	if a.logger != nil {
		return a.logger
	}
	return &acquirerNopLogger
}
