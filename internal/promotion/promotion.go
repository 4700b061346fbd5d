package promotion

import (
	"errors"
	"fmt"
	"slices"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
)

// NoneID marks a result priced at the base unit price.
const NoneID = "none"

var (
	// ErrInvalidPromotion is returned when a promotion is constructed with out-of-range parameters.
	ErrInvalidPromotion = errors.New("promotion: invalid configuration")
	// ErrInvalidItem is returned for cart lines with a non-positive quantity.
	ErrInvalidItem = errors.New("promotion: invalid item")
)

// Item is one priced cart line.
type Item struct {
	Code      catalog.ProductCode
	UnitPrice money.Money
	Quantity  int
}

// NewItem builds an Item, rejecting non-positive quantities.
func NewItem(code catalog.ProductCode, unitPrice money.Money, quantity int) (Item, error) {
	if quantity <= 0 {
		return Item{}, fmt.Errorf("%w: quantity %d for %s", ErrInvalidItem, quantity, code)
	}
	return Item{Code: code, UnitPrice: unitPrice, Quantity: quantity}, nil
}

// BaseTotal is unit price times quantity.
func (i Item) BaseTotal() (money.Money, error) {
	return i.UnitPrice.Mul(i.Quantity)
}

// Result is the priced outcome of a line.
type Result struct {
	Total       money.Money
	Description string
	PromotionID string
}

// Base prices item without any promotion.
func Base(item Item) (Result, error) {
	total, err := item.BaseTotal()
	if err != nil {
		return Result{}, err
	}
	return Result{
		Total:       total,
		Description: fmt.Sprintf("Base price: %d × %s", item.Quantity, item.UnitPrice),
		PromotionID: NoneID,
	}, nil
}

// Promotion is a discount rule bound to a set of eligible products. The set of
// implementations is closed: BulkDiscount and BuyXGetYFree.
type Promotion interface {
	ID() string
	Name() string
	// Priority orders promotions; lower values take precedence.
	Priority() int
	Eligible() []catalog.ProductCode
	// Applicable reports whether the line's product is eligible.
	Applicable(item Item) bool
	// Apply prices the line. ok is false when the rule's threshold is not met.
	Apply(item Item) (res Result, ok bool, err error)

	sealed()
}

// Option overrides the generated identity of a promotion.
type Option func(*meta)

// WithID sets the promotion id.
func WithID(id string) Option {
	return func(m *meta) { m.id = id }
}

// WithName sets the display name.
func WithName(name string) Option {
	return func(m *meta) { m.name = name }
}

// WithPriority sets the precedence; lower wins.
func WithPriority(priority int) Option {
	return func(m *meta) { m.priority = priority }
}

type meta struct {
	id       string
	name     string
	priority int
	eligible []catalog.ProductCode
}

func newMeta(eligible []catalog.ProductCode, id, name string, priority int, opts []Option) meta {
	m := meta{id: id, name: name, priority: priority, eligible: slices.Clone(eligible)}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

func (m meta) ID() string    { return m.id }
func (m meta) Name() string  { return m.name }
func (m meta) Priority() int { return m.priority }

func (m meta) Eligible() []catalog.ProductCode {
	return slices.Clone(m.eligible)
}

func (m meta) Applicable(item Item) bool {
	return slices.Contains(m.eligible, item.Code)
}

func (meta) sealed() {}

// Defaults is the promotion set offered by the shop.
func Defaults() []Promotion {
	buy2, err := NewBuyXGetYFree(2, 1, []catalog.ProductCode{catalog.APE, catalog.AZUKI},
		WithID("buy2get1free"), WithName("Buy 2 Get 1 Free"), WithPriority(1))
	if err != nil {
		panic(err)
	}
	bulk, err := NewBulkDiscount(3, 20, []catalog.ProductCode{catalog.PUNK, catalog.AZUKI},
		WithID("bulk20"), WithName("20% Bulk Discount (3+)"), WithPriority(2))
	if err != nil {
		panic(err)
	}
	return []Promotion{buy2, bulk}
}

// NamesFor lists the names of promotions that include code in their eligible set.
func NamesFor(promos []Promotion, code catalog.ProductCode) []string {
	names := make([]string, 0, len(promos))
	for _, p := range promos {
		if slices.Contains(p.Eligible(), code) {
			names = append(names, p.Name())
		}
	}
	return names
}
