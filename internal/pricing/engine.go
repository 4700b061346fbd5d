package pricing

import (
	"errors"
	"fmt"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
	"github.com/noah-isme/nft-checkout/internal/promotion"
)

// Line is a priced cart line.
type Line struct {
	Code             catalog.ProductCode
	Quantity         int
	UnitPrice        money.Money
	Total            money.Money
	PromotionApplied string
	Description      string
}

// Breakdown aggregates priced lines and their exact sum.
type Breakdown struct {
	Lines      []Line
	GrandTotal money.Money
}

// Engine prices cart lines with a fixed promotion set and strategy. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	Promotions []promotion.Promotion
	Strategy   Strategy
}

// NewEngine builds an Engine.
func NewEngine(promotions []promotion.Promotion, strategy Strategy) *Engine {
	return &Engine{Promotions: promotions, Strategy: strategy}
}

// Calculate prices every item in order. Lines with no applicable promotion
// are priced at base without consulting the strategy.
func (e *Engine) Calculate(items []promotion.Item) (Breakdown, error) {
	if e.Strategy == nil {
		return Breakdown{}, errors.New("pricing: strategy not configured")
	}
	out := Breakdown{Lines: make([]Line, 0, len(items)), GrandTotal: money.Zero()}
	for _, item := range items {
		res, err := e.priceLine(item)
		if err != nil {
			return Breakdown{}, fmt.Errorf("price %s: %w", item.Code, err)
		}
		out.Lines = append(out.Lines, Line{
			Code:             item.Code,
			Quantity:         item.Quantity,
			UnitPrice:        item.UnitPrice,
			Total:            res.Total,
			PromotionApplied: res.PromotionID,
			Description:      res.Description,
		})
		out.GrandTotal = out.GrandTotal.Add(res.Total)
	}
	return out, nil
}

func (e *Engine) priceLine(item promotion.Item) (promotion.Result, error) {
	applicable := make([]promotion.Promotion, 0, len(e.Promotions))
	for _, p := range e.Promotions {
		if p.Applicable(item) {
			applicable = append(applicable, p)
		}
	}
	if len(applicable) == 0 {
		return promotion.Base(item)
	}
	return e.Strategy.Resolve(item, applicable)
}
