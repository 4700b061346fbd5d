package pricing

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/noah-isme/nft-checkout/internal/promotion"
)

// ErrUnknownStrategy is returned for strategy names outside MIN, PRIORITY and STACK.
var ErrUnknownStrategy = errors.New("pricing: unknown strategy")

// Kind names a conflict-resolution strategy.
type Kind string

const (
	KindMin      Kind = "MIN"
	KindPriority Kind = "PRIORITY"
	KindStack    Kind = "STACK"
)

// Kinds lists every supported strategy.
func Kinds() []Kind {
	return []Kind{KindMin, KindPriority, KindStack}
}

// ParseKind accepts a strategy name in any case.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToUpper(strings.TrimSpace(raw)))
	if !slices.Contains(Kinds(), kind) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, raw)
	}
	return kind, nil
}

// Strategy resolves a line when several promotions apply to it. Callers pass
// only promotions whose Applicable check passed. The set of implementations
// is closed: Min, Priority and Stack.
type Strategy interface {
	Name() Kind
	Resolve(item promotion.Item, applicable []promotion.Promotion) (promotion.Result, error)

	sealed()
}

// NewStrategy returns the strategy for kind.
func NewStrategy(kind Kind) (Strategy, error) {
	switch kind {
	case KindMin:
		return Min{}, nil
	case KindPriority:
		return Priority{}, nil
	case KindStack:
		return Stack{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, string(kind))
	}
}

// ParseStrategy is ParseKind followed by NewStrategy.
func ParseStrategy(raw string) (Strategy, error) {
	kind, err := ParseKind(raw)
	if err != nil {
		return nil, err
	}
	return NewStrategy(kind)
}

// Min picks the cheapest of the base price and every applicable promotion.
// On equal totals the earliest candidate wins, base price first.
type Min struct{}

func (Min) Name() Kind { return KindMin }
func (Min) sealed()    {}

func (Min) Resolve(item promotion.Item, applicable []promotion.Promotion) (promotion.Result, error) {
	best, err := promotion.Base(item)
	if err != nil {
		return promotion.Result{}, err
	}
	for _, p := range applicable {
		res, ok, err := p.Apply(item)
		if err != nil {
			return promotion.Result{}, fmt.Errorf("apply %s: %w", p.ID(), err)
		}
		if ok && res.Total.LessThan(best.Total) {
			best = res
		}
	}
	return best, nil
}

// Priority uses the first promotion, by ascending priority, whose threshold is
// met. Equal priorities keep input order.
type Priority struct{}

func (Priority) Name() Kind { return KindPriority }
func (Priority) sealed()    {}

func (Priority) Resolve(item promotion.Item, applicable []promotion.Promotion) (promotion.Result, error) {
	ordered := slices.Clone(applicable)
	slices.SortStableFunc(ordered, func(a, b promotion.Promotion) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	for _, p := range ordered {
		res, ok, err := p.Apply(item)
		if err != nil {
			return promotion.Result{}, fmt.Errorf("apply %s: %w", p.ID(), err)
		}
		if ok {
			return res, nil
		}
	}
	return promotion.Base(item)
}

// Stack composes every applicable promotion multiplicatively, ordered by
// priority then id. The first result seeds the running total; each later one
// scales it by result/base with floor division. A zero base total skips the
// scaling step.
type Stack struct{}

func (Stack) Name() Kind { return KindStack }
func (Stack) sealed()    {}

func (Stack) Resolve(item promotion.Item, applicable []promotion.Promotion) (promotion.Result, error) {
	base, err := promotion.Base(item)
	if err != nil {
		return promotion.Result{}, err
	}
	ordered := slices.Clone(applicable)
	slices.SortStableFunc(ordered, func(a, b promotion.Promotion) int {
		if c := cmp.Compare(a.Priority(), b.Priority()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})

	running := base.Total
	var descriptions, ids []string
	for _, p := range ordered {
		res, ok, err := p.Apply(item)
		if err != nil {
			return promotion.Result{}, fmt.Errorf("apply %s: %w", p.ID(), err)
		}
		if !ok {
			continue
		}
		switch {
		case len(ids) == 0:
			running = res.Total
		case !base.Total.IsZero():
			running, err = running.MulRatio(res.Total, base.Total)
			if err != nil {
				return promotion.Result{}, err
			}
		}
		descriptions = append(descriptions, res.Description)
		ids = append(ids, res.PromotionID)
	}
	if len(ids) == 0 {
		return base, nil
	}
	return promotion.Result{
		Total:       running,
		Description: "Stacked: " + strings.Join(descriptions, " + "),
		PromotionID: strings.Join(ids, "+"),
	}, nil
}
