package prices

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
	"github.com/noah-isme/nft-checkout/internal/resilience"
)

const (
	// DefaultOpenSeaBaseURL is the OpenSea v2 API root.
	DefaultOpenSeaBaseURL = "https://api.opensea.io/api/v2"

	expectedSymbol    = "ETH"
	defaultRetryAfter = 2 * time.Second
	maxStatsBody      = 1 << 20
)

// ErrInvalidPayload is returned when the stats response cannot be turned into a price.
var ErrInvalidPayload = errors.New("opensea: invalid stats payload")

// StatusError reports a non-success HTTP status from OpenSea.
type StatusError struct {
	Slug       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("opensea: stats for %s: HTTP %d", e.Slug, e.StatusCode)
}

// RateLimitedError reports an HTTP 429 together with the advertised wait.
type RateLimitedError struct {
	Slug       string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("opensea: rate limited for %s, retry after %s", e.Slug, e.RetryAfter)
}

// RetryDelay lets resilience.Retry wait at least as long as OpenSea asked.
func (e *RateLimitedError) RetryDelay() time.Duration { return e.RetryAfter }

// OpenSeaSource reads collection floor prices from the OpenSea stats endpoint.
type OpenSeaSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// OpenSeaOption customises an OpenSeaSource.
type OpenSeaOption func(*OpenSeaSource)

// WithBaseURL points the source at another API root, e.g. a test server.
func WithBaseURL(base string) OpenSeaOption {
	return func(s *OpenSeaSource) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(client *http.Client) OpenSeaOption {
	return func(s *OpenSeaSource) {
		if client != nil {
			s.client = client
		}
	}
}

// NewOpenSeaSource builds a source authenticated with apiKey.
func NewOpenSeaSource(apiKey string, opts ...OpenSeaOption) *OpenSeaSource {
	s := &OpenSeaSource{
		apiKey:  apiKey,
		baseURL: DefaultOpenSeaBaseURL,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (*OpenSeaSource) Name() string { return ProviderOpenSea }

type statsPayload struct {
	Total *struct {
		FloorPrice       json.RawMessage `json:"floor_price"`
		FloorPriceSymbol *string         `json:"floor_price_symbol"`
	} `json:"total"`
}

// FetchPrice implements Source. Payload problems are returned as permanent
// errors; transport failures, 429 and 5xx responses are retryable.
func (s *OpenSeaSource) FetchPrice(ctx context.Context, code catalog.ProductCode) (money.Money, error) {
	product, ok := catalog.Lookup(code)
	if !ok {
		return money.Money{}, resilience.Permanent(fmt.Errorf("%w: %s", catalog.ErrUnknownProduct, code))
	}
	endpoint := fmt.Sprintf("%s/collections/%s/stats", s.baseURL, url.PathEscape(product.Slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return money.Money{}, resilience.Permanent(err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return money.Money{}, fmt.Errorf("opensea: stats for %s: %w", product.Slug, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return money.Money{}, &RateLimitedError{Slug: product.Slug, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Slug: product.Slug, StatusCode: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusRequestTimeout {
			return money.Money{}, resilience.Permanent(statusErr)
		}
		return money.Money{}, statusErr
	}

	var payload statsPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatsBody)).Decode(&payload); err != nil {
		return money.Money{}, resilience.Permanent(fmt.Errorf("%w: %s: %v", ErrInvalidPayload, product.Slug, err))
	}
	price, err := floorPrice(payload, product.Slug)
	if err != nil {
		return money.Money{}, resilience.Permanent(err)
	}
	return price, nil
}

func floorPrice(payload statsPayload, slug string) (money.Money, error) {
	if payload.Total == nil {
		return money.Money{}, fmt.Errorf("%w: %s: missing total", ErrInvalidPayload, slug)
	}
	raw := bytes.TrimSpace(payload.Total.FloorPrice)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return money.Money{}, fmt.Errorf("%w: %s: no floor price", ErrInvalidPayload, slug)
	}
	if raw[0] == '"' {
		return money.Money{}, fmt.Errorf("%w: %s: floor price is not a number", ErrInvalidPayload, slug)
	}
	symbol := ""
	if payload.Total.FloorPriceSymbol != nil {
		symbol = *payload.Total.FloorPriceSymbol
	}
	if symbol != expectedSymbol {
		return money.Money{}, fmt.Errorf("%w: %s: unexpected symbol %q", ErrInvalidPayload, slug, symbol)
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, slug, err)
	}
	price, err := money.FromDecimal(d)
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, slug, err)
	}
	return price, nil
}

func parseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
