package prices

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Batch outcomes recorded in Metrics.Batches.
const (
	OutcomeFull             = "full"
	OutcomePartialMerged    = "partial_merged"
	OutcomePartial          = "partial"
	OutcomeFailedStale      = "failed_stale"
	OutcomeFailed           = "failed"
	OutcomeCircuitOpenStale = "circuit_open_stale"
	OutcomeCircuitOpen      = "circuit_open"
	OutcomeStoreAdopted     = "store_adopted"
)

// Metrics groups the acquisition collectors.
type Metrics struct {
	Batches       *prometheus.CounterVec
	ItemFetches   *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec
	CacheHits     *prometheus.CounterVec
}

// NewMetrics registers acquisition collectors on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_batches_total",
			Help:      "Price acquisition attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ItemFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_item_fetch_total",
			Help:      "Per-product price fetches after retries, by result.",
		}, []string{"provider", "product", "result"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_batch_duration_ms",
			Help:      "Wall time of a fan-out price fetch in milliseconds.",
			Buckets:   []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"provider"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_hits_total",
			Help:      "Snapshot requests served from the in-process cache.",
		}, []string{"provider"}),
	}
	mustRegisterCollector(reg, m.Batches, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.Batches = v
		}
	})
	mustRegisterCollector(reg, m.ItemFetches, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.ItemFetches = v
		}
	})
	mustRegisterCollector(reg, m.BatchDuration, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.HistogramVec); ok {
			m.BatchDuration = v
		}
	})
	mustRegisterCollector(reg, m.CacheHits, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.CacheHits = v
		}
	})
	return m
}

func (m *Metrics) batch(provider, outcome string) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) item(provider, product string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ItemFetches.WithLabelValues(provider, product, result).Inc()
}

func (m *Metrics) duration(provider string, ms float64) {
	if m == nil {
		return
	}
	m.BatchDuration.WithLabelValues(provider).Observe(ms)
}

func (m *Metrics) cacheHit(provider string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(provider).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register price metric: %w", err))
	}
}
