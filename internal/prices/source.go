package prices

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
	"github.com/noah-isme/nft-checkout/internal/resilience"
)

var (
	// ErrAcquisitionFailed is returned when every product fetch failed and no
	// earlier snapshot exists to fall back on.
	ErrAcquisitionFailed = errors.New("prices: acquisition failed")
	// ErrCircuitOpen is returned when the breaker is open and no earlier
	// snapshot exists. It wraps resilience.ErrOpenCircuit.
	ErrCircuitOpen = fmt.Errorf("prices: %w", resilience.ErrOpenCircuit)
	// ErrNoPrice is returned when a snapshot has no price for a product.
	ErrNoPrice = errors.New("prices: no price for product")
)

// Source fetches the current unit price of a single product from an external
// system. Implementations must be safe for concurrent use.
type Source interface {
	Name() string
	FetchPrice(ctx context.Context, code catalog.ProductCode) (money.Money, error)
}

// Snapshot is a set of unit prices acquired together.
type Snapshot struct {
	Prices    map[catalog.ProductCode]money.Money
	FetchedAt time.Time
}

// Clone returns a copy whose map can be modified freely.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Prices: maps.Clone(s.Prices), FetchedAt: s.FetchedAt}
}

// Price returns the price of code if the snapshot has one.
func (s Snapshot) Price(code catalog.ProductCode) (money.Money, bool) {
	p, ok := s.Prices[code]
	return p, ok
}

// Provider yields whole-catalog price snapshots.
type Provider interface {
	Name() string
	Snapshot(ctx context.Context) (Snapshot, error)
	Price(ctx context.Context, code catalog.ProductCode) (money.Money, error)
}

// PriceOf fetches a snapshot from p and returns the price of code.
func PriceOf(ctx context.Context, p interface {
	Snapshot(context.Context) (Snapshot, error)
}, code catalog.ProductCode) (money.Money, error) {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return money.Money{}, err
	}
	price, ok := snap.Price(code)
	if !ok {
		return money.Money{}, fmt.Errorf("%w: %s", ErrNoPrice, code)
	}
	return price, nil
}
