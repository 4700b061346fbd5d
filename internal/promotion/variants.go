package promotion

import (
	"fmt"

	"github.com/noah-isme/nft-checkout/internal/catalog"
)

// BulkDiscount takes discountPercent off every unit once the line reaches
// minQuantity units.
type BulkDiscount struct {
	meta
	minQuantity int
	percent     int
}

// NewBulkDiscount validates and builds a BulkDiscount. Without options the id
// is "bulk<pct>off" and the priority is 2.
func NewBulkDiscount(minQuantity, discountPercent int, eligible []catalog.ProductCode, opts ...Option) (*BulkDiscount, error) {
	if discountPercent < 0 || discountPercent > 100 {
		return nil, fmt.Errorf("%w: discount percent %d outside 0-100", ErrInvalidPromotion, discountPercent)
	}
	if minQuantity < 1 {
		return nil, fmt.Errorf("%w: minimum quantity %d", ErrInvalidPromotion, minQuantity)
	}
	m := newMeta(eligible,
		fmt.Sprintf("bulk%doff", discountPercent),
		fmt.Sprintf("%d%% Bulk Discount (min %d)", discountPercent, minQuantity),
		2, opts)
	return &BulkDiscount{meta: m, minQuantity: minQuantity, percent: discountPercent}, nil
}

// Apply implements Promotion.
func (p *BulkDiscount) Apply(item Item) (Result, bool, error) {
	if !p.Applicable(item) || item.Quantity < p.minQuantity {
		return Result{}, false, nil
	}
	unit, err := item.UnitPrice.ApplyPercentage(100 - p.percent)
	if err != nil {
		return Result{}, false, err
	}
	total, err := unit.Mul(item.Quantity)
	if err != nil {
		return Result{}, false, err
	}
	return Result{
		Total:       total,
		Description: fmt.Sprintf("%s: %d × %s", p.name, item.Quantity, unit),
		PromotionID: p.id,
	}, true, nil
}

// BuyXGetYFree charges for buy units out of every group of buy+free; units
// past the last full group are charged.
type BuyXGetYFree struct {
	meta
	buy  int
	free int
}

// NewBuyXGetYFree validates and builds a BuyXGetYFree. Without options the id
// is "buy<x>get<y>free" and the priority is 1.
func NewBuyXGetYFree(buy, free int, eligible []catalog.ProductCode, opts ...Option) (*BuyXGetYFree, error) {
	if buy < 1 || free < 1 {
		return nil, fmt.Errorf("%w: buy %d get %d free", ErrInvalidPromotion, buy, free)
	}
	m := newMeta(eligible,
		fmt.Sprintf("buy%dget%dfree", buy, free),
		fmt.Sprintf("Buy %d Get %d Free", buy, free),
		1, opts)
	return &BuyXGetYFree{meta: m, buy: buy, free: free}, nil
}

// PaidUnits returns how many of quantity units are charged.
func (p *BuyXGetYFree) PaidUnits(quantity int) int {
	group := p.buy + p.free
	return (quantity/group)*p.buy + quantity%group
}

// Apply implements Promotion.
func (p *BuyXGetYFree) Apply(item Item) (Result, bool, error) {
	if !p.Applicable(item) || item.Quantity < p.buy+p.free {
		return Result{}, false, nil
	}
	paid := p.PaidUnits(item.Quantity)
	total, err := item.UnitPrice.Mul(paid)
	if err != nil {
		return Result{}, false, err
	}
	return Result{
		Total:       total,
		Description: fmt.Sprintf("%s: %d items, pay for %d", p.name, item.Quantity, paid),
		PromotionID: p.id,
	}, true, nil
}
