package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/prices"
	"github.com/noah-isme/nft-checkout/internal/pricing"
	"github.com/noah-isme/nft-checkout/internal/promotion"
)

// DefaultQuoteValidity is how long a quote stays valid after its prices were fetched.
const DefaultQuoteValidity = 30 * time.Second

// ErrUnknownProduct is returned when a requested product has no price after acquisition.
var ErrUnknownProduct = errors.New("checkout: price unavailable for product")

// LineItem is one priced line of a quote.
type LineItem struct {
	ProductCode      string `json:"productCode"`
	Quantity         int    `json:"quantity"`
	UnitPriceWei     string `json:"unitPriceWei"`
	TotalPriceWei    string `json:"totalPriceWei"`
	UnitPriceEth     string `json:"unitPriceEth"`
	TotalPriceEth    string `json:"totalPriceEth"`
	PromotionApplied string `json:"promotionApplied"`
	Description      string `json:"description"`
}

// Quote is a priced cart with its validity window.
type Quote struct {
	LineItems       []LineItem `json:"lineItems"`
	GrandTotalWei   string     `json:"grandTotalWei"`
	GrandTotalEth   string     `json:"grandTotalEth"`
	StrategyUsed    string     `json:"strategyUsed"`
	PricesFetchedAt string     `json:"pricesFetchedAt"`
	PriceValidUntil string     `json:"priceValidUntil"`
}

// Service prices carts against a provider snapshot.
type Service struct {
	Promotions []promotion.Promotion
	// QuoteValidity defaults to DefaultQuoteValidity when zero.
	QuoteValidity time.Duration
	Logger        zerolog.Logger
}

// NewService builds a service with the given promotions.
func NewService(promos []promotion.Promotion, validity time.Duration, logger zerolog.Logger) *Service {
	return &Service{Promotions: promos, QuoteValidity: validity, Logger: logger}
}

// Quote acquires prices from provider and prices lines with strategy. Lines
// are expected to be validated already; only the presence of a price for each
// product is checked here. Acquisition errors are returned unchanged.
func (s *Service) Quote(ctx context.Context, provider prices.Provider, strategy pricing.Strategy, lines []catalog.Line) (Quote, error) {
	if s == nil || provider == nil || strategy == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	snap, err := provider.Snapshot(ctx)
	if err != nil {
		return Quote{}, err
	}

	items := make([]promotion.Item, 0, len(lines))
	for _, line := range lines {
		price, ok := snap.Price(line.Code)
		if !ok {
			return Quote{}, fmt.Errorf("%w: %s", ErrUnknownProduct, line.Code)
		}
		item, err := promotion.NewItem(line.Code, price, line.Quantity)
		if err != nil {
			return Quote{}, err
		}
		items = append(items, item)
	}

	breakdown, err := pricing.NewEngine(s.Promotions, strategy).Calculate(items)
	if err != nil {
		return Quote{}, err
	}

	validity := s.QuoteValidity
	if validity <= 0 {
		validity = DefaultQuoteValidity
	}
	quote := Quote{
		LineItems:       make([]LineItem, 0, len(breakdown.Lines)),
		GrandTotalWei:   breakdown.GrandTotal.MinorString(),
		GrandTotalEth:   breakdown.GrandTotal.String(),
		StrategyUsed:    string(strategy.Name()),
		PricesFetchedAt: prices.FormatTime(snap.FetchedAt),
		PriceValidUntil: prices.FormatTime(snap.FetchedAt.Add(validity)),
	}
	for _, l := range breakdown.Lines {
		quote.LineItems = append(quote.LineItems, LineItem{
			ProductCode:      string(l.Code),
			Quantity:         l.Quantity,
			UnitPriceWei:     l.UnitPrice.MinorString(),
			TotalPriceWei:    l.Total.MinorString(),
			UnitPriceEth:     l.UnitPrice.String(),
			TotalPriceEth:    l.Total.String(),
			PromotionApplied: l.PromotionApplied,
			Description:      l.Description,
		})
	}

	s.logger(ctx).Info().
		Str("provider", provider.Name()).
		Str("strategy", quote.StrategyUsed).
		Int("lines", len(quote.LineItems)).
		Str("grand_total_wei", quote.GrandTotalWei).
		Msg("checkout_quoted")
	return quote, nil
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}
