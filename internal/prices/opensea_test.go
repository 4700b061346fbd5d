package prices_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
	"github.com/noah-isme/nft-checkout/internal/prices"
	"github.com/noah-isme/nft-checkout/internal/resilience"
)

func newOpenSea(t *testing.T, handler http.HandlerFunc) *prices.OpenSeaSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return prices.NewOpenSeaSource("secret", prices.WithBaseURL(srv.URL+"/"), prices.WithHTTPClient(srv.Client()))
}

func TestOpenSeaFetchPrice(t *testing.T) {
	src := newOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/azuki/stats", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"total":{"floor_price":5.123456789012345678,"floor_price_symbol":"ETH"}}`))
	})

	price, err := src.FetchPrice(context.Background(), catalog.AZUKI)
	require.NoError(t, err)
	require.Equal(t, "5123456789012345678", price.MinorString())
	require.Equal(t, prices.ProviderOpenSea, src.Name())
}

func TestOpenSeaPayloadErrorsArePermanent(t *testing.T) {
	cases := map[string]string{
		"missing total":  `{}`,
		"null floor":     `{"total":{"floor_price":null,"floor_price_symbol":"ETH"}}`,
		"string floor":   `{"total":{"floor_price":"5","floor_price_symbol":"ETH"}}`,
		"wrong symbol":   `{"total":{"floor_price":5,"floor_price_symbol":"WETH"}}`,
		"missing symbol": `{"total":{"floor_price":5}}`,
		"negative":       `{"total":{"floor_price":-1,"floor_price_symbol":"ETH"}}`,
		"not json":       `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			src := newOpenSea(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := src.FetchPrice(context.Background(), catalog.APE)
			require.ErrorIs(t, err, prices.ErrInvalidPayload)
			require.True(t, resilience.IsPermanent(err))
		})
	}
}

func TestOpenSeaStatusHandling(t *testing.T) {
	cases := []struct {
		status    int
		permanent bool
	}{
		{http.StatusNotFound, true},
		{http.StatusUnauthorized, true},
		{http.StatusRequestTimeout, false},
		{http.StatusBadGateway, false},
		{http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		src := newOpenSea(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := src.FetchPrice(context.Background(), catalog.PUNK)
		var statusErr *prices.StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, tc.status, statusErr.StatusCode)
		require.Equal(t, "cryptopunks", statusErr.Slug)
		require.Equal(t, tc.permanent, resilience.IsPermanent(err), "status %d", tc.status)
	}
}

func TestOpenSeaRateLimited(t *testing.T) {
	src := newOpenSea(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := src.FetchPrice(context.Background(), catalog.MEEBIT)
	var limited *prices.RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, 7*time.Second, limited.RetryAfter)
	require.False(t, resilience.IsPermanent(err))

	src = newOpenSea(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err = src.FetchPrice(context.Background(), catalog.MEEBIT)
	require.ErrorAs(t, err, &limited)
	require.Equal(t, 2*time.Second, limited.RetryAfter)
}

func TestOpenSeaThroughAcquirerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	src := newOpenSea(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/boredapeyachtclub/stats" {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte(`{"total":{"floor_price":12.5,"floor_price_symbol":"ETH"}}`))
	})
	cfg := testConfig()
	cfg.MaxRetries = 1
	acq := prices.NewAcquirer(src, cfg)

	snap, err := acq.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Prices, 4)
	require.Equal(t, int32(2), calls.Load())
	require.True(t, snap.Prices[catalog.APE].Equal(money.MustParse("12.5")))
}

func TestOpenSeaUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	src := prices.NewOpenSeaSource("k", prices.WithBaseURL(srv.URL))
	_, err := src.FetchPrice(context.Background(), catalog.APE)
	require.Error(t, err)
	require.False(t, resilience.IsPermanent(err))
	require.False(t, errors.Is(err, prices.ErrInvalidPayload))
}

func TestOpenSeaLongRetryAfterFailsBatchPromptly(t *testing.T) {
	var hits atomic.Int32
	src := newOpenSea(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "3600")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.RetryBaseDelay = 10 * time.Millisecond
	cfg.FetchTimeout = time.Second
	acq := prices.NewAcquirer(src, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	_, err := acq.Snapshot(ctx)
	require.ErrorIs(t, err, prices.ErrAcquisitionFailed)
	require.Less(t, time.Since(start), time.Second)

	var limited *prices.RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, int32(len(catalog.All())), hits.Load())
	require.Equal(t, 1, acq.Breaker().Failures())
}
