package prices

import (
	"context"
	"fmt"
	"maps"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
	"github.com/noah-isme/nft-checkout/internal/resilience"
)

// DefaultMockPrices returns the static floor prices served by MockSource.
func DefaultMockPrices() map[catalog.ProductCode]money.Money {
	return map[catalog.ProductCode]money.Money{
		catalog.APE:    money.MustParse("75"),
		catalog.PUNK:   money.MustParse("60"),
		catalog.AZUKI:  money.MustParse("30"),
		catalog.MEEBIT: money.MustParse("4"),
	}
}

// MockSource serves fixed prices.
type MockSource struct {
	prices map[catalog.ProductCode]money.Money
}

// NewMockSource serves prices, or DefaultMockPrices when prices is nil.
func NewMockSource(prices map[catalog.ProductCode]money.Money) *MockSource {
	if prices == nil {
		prices = DefaultMockPrices()
	}
	return &MockSource{prices: maps.Clone(prices)}
}

// Name implements Source.
func (*MockSource) Name() string { return ProviderMock }

// FetchPrice implements Source.
func (s *MockSource) FetchPrice(_ context.Context, code catalog.ProductCode) (money.Money, error) {
	price, ok := s.prices[code]
	if !ok {
		return money.Money{}, resilience.Permanent(fmt.Errorf("%w: %s", ErrNoPrice, code))
	}
	return price, nil
}
