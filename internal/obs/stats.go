package obs

import (
	"math"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/noah-isme/nft-checkout/internal/common"
)

// RequestStats counts handled requests and server errors for the lightweight
// JSON metrics endpoint. The process entry point owns one instance and hands
// it to the middleware and handler.
type RequestStats struct {
	started  time.Time
	requests atomic.Uint64
	errors   atomic.Uint64
	now      func() time.Time
}

// NewRequestStats starts the uptime clock at now.
func NewRequestStats(now func() time.Time) *RequestStats {
	if now == nil {
		now = time.Now
	}
	return &RequestStats{started: now(), now: now}
}

// MemoryStats reports heap figures in whole mebibytes.
type MemoryStats struct {
	AllocMB     uint64 `json:"alloc_mb"`
	HeapInuseMB uint64 `json:"heap_inuse_mb"`
	SysMB       uint64 `json:"sys_mb"`
}

// StatsSnapshot is the body of GET /api/metrics.
type StatsSnapshot struct {
	UptimeSeconds int64       `json:"uptime_seconds"`
	RequestsTotal uint64      `json:"requests_total"`
	ErrorsTotal   uint64      `json:"errors_total"`
	Memory        MemoryStats `json:"memory"`
}

// Middleware counts every request, and every 5xx response or handler panic
// as an error. Panics are re-raised for the recoverer above it.
func (s *RequestStats) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		defer func() {
			if rec := recover(); rec != nil {
				if rec != http.ErrAbortHandler {
					s.errors.Add(1)
				}
				panic(rec)
			}
		}()
		recorder := NewStatusRecorder(w)
		next.ServeHTTP(recorder, r)
		if recorder.Status() >= http.StatusInternalServerError {
			s.errors.Add(1)
		}
	})
}

// Snapshot reads the counters and current memory usage.
func (s *RequestStats) Snapshot() StatsSnapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return StatsSnapshot{
		UptimeSeconds: int64(s.now().Sub(s.started) / time.Second),
		RequestsTotal: s.requests.Load(),
		ErrorsTotal:   s.errors.Load(),
		Memory: MemoryStats{
			AllocMB:     toMB(mem.Alloc),
			HeapInuseMB: toMB(mem.HeapInuse),
			SysMB:       toMB(mem.Sys),
		},
	}
}

// Handler serves the snapshot as JSON.
func (s *RequestStats) Handler(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, s.Snapshot())
}

func toMB(b uint64) uint64 {
	return uint64(math.Round(float64(b) / (1 << 20)))
}
