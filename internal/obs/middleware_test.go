package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nft-checkout/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("nftcheckout", []float64{10, 1}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/prices", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/prices?provider=mock", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/prices", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))

	again := obs.NewHTTPMetrics("nftcheckout", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	handler := obs.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = chiReqID(r)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rr.Header().Get(obs.RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	require.Equal(t, generated, seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(obs.RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, "abc-123", rr.Header().Get(obs.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(obs.RequestIDHeader, strings.Repeat("x", 200))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Len(t, rr.Header().Get(obs.RequestIDHeader), 36)
}

func TestRequestLoggerLevelsAndContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "debug")

	r := chi.NewRouter()
	r.Use(obs.RequestID, obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/boom/{id}", func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside_handler")
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/boom/7", nil)
	req.Header.Set(obs.RequestIDHeader, "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var inner, boom, missing map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &inner))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &boom))
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &missing))

	require.Equal(t, "inside_handler", inner["message"])
	require.Equal(t, "req-1", inner["request_id"])

	require.Equal(t, "http_request", boom["message"])
	require.Equal(t, "error", boom["level"])
	require.Equal(t, "/boom/{id}", boom["route"])
	require.Equal(t, float64(503), boom["status"])
	require.Equal(t, "req-1", boom["request_id"])

	require.Equal(t, "warn", missing["level"])
	require.Equal(t, float64(404), missing["status"])
}

func TestNewLoggerToFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "chatty")
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestRequestStatsCountsRequestsAndServerErrors(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	stats := obs.NewRequestStats(clock)

	handler := stats.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fail":
			w.WriteHeader(http.StatusInternalServerError)
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	for _, path := range []string{"/", "/bad", "/fail", "/"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	now = now.Add(90 * time.Second)
	rr := httptest.NewRecorder()
	stats.Handler(rr, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, float64(90), body["uptime_seconds"])
	require.Equal(t, float64(4), body["requests_total"])
	require.Equal(t, float64(1), body["errors_total"])
	mem, ok := body["memory"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, mem, "alloc_mb")
	require.Contains(t, mem, "heap_inuse_mb")
	require.Contains(t, mem, "sys_mb")
}

func TestRequestStatsCountsRecoveredPanics(t *testing.T) {
	stats := obs.NewRequestStats(time.Now)
	handler := middleware.Recoverer(stats.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/checkout", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	snap := stats.Snapshot()
	require.Equal(t, uint64(1), snap.RequestsTotal)
	require.Equal(t, uint64(1), snap.ErrorsTotal)
}
