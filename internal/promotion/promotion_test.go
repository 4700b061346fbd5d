package promotion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
	"github.com/noah-isme/nft-checkout/internal/promotion"
)

func item(t *testing.T, code catalog.ProductCode, unitEth int64, qty int) promotion.Item {
	t.Helper()
	price, err := money.FromMajor(unitEth)
	require.NoError(t, err)
	it, err := promotion.NewItem(code, price, qty)
	require.NoError(t, err)
	return it
}

func TestNewItemRejectsNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -3} {
		_, err := promotion.NewItem(catalog.APE, money.Zero(), qty)
		require.ErrorIs(t, err, promotion.ErrInvalidItem)
	}
}

func TestBase(t *testing.T) {
	res, err := promotion.Base(item(t, catalog.APE, 75, 2))
	require.NoError(t, err)
	assert.Equal(t, promotion.NoneID, res.PromotionID)
	assert.Equal(t, "150 ETH", res.Total.String())
	assert.Equal(t, "Base price: 2 × 75 ETH", res.Description)
}

func TestBulkDiscount(t *testing.T) {
	bulk, err := promotion.NewBulkDiscount(3, 20, []catalog.ProductCode{catalog.PUNK})
	require.NoError(t, err)
	assert.Equal(t, "bulk20off", bulk.ID())
	assert.Equal(t, "20% Bulk Discount (min 3)", bulk.Name())
	assert.Equal(t, 2, bulk.Priority())

	_, ok, err := bulk.Apply(item(t, catalog.PUNK, 60, 2))
	require.NoError(t, err)
	assert.False(t, ok, "below threshold")

	_, ok, err = bulk.Apply(item(t, catalog.APE, 60, 5))
	require.NoError(t, err)
	assert.False(t, ok, "ineligible product")
	assert.False(t, bulk.Applicable(item(t, catalog.APE, 60, 5)))

	res, ok, err := bulk.Apply(item(t, catalog.PUNK, 60, 3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "144 ETH", res.Total.String())
	assert.Equal(t, "bulk20off", res.PromotionID)
	assert.Equal(t, "20% Bulk Discount (min 3): 3 × 48 ETH", res.Description)
}

func TestBulkDiscountFloorsPerUnit(t *testing.T) {
	bulk, err := promotion.NewBulkDiscount(1, 33, []catalog.ProductCode{catalog.MEEBIT})
	require.NoError(t, err)
	unit, err := money.FromMinorInt64(10)
	require.NoError(t, err)
	it, err := promotion.NewItem(catalog.MEEBIT, unit, 4)
	require.NoError(t, err)

	res, ok, err := bulk.Apply(it)
	require.NoError(t, err)
	require.True(t, ok)
	// floor(10 * 67 / 100) = 6 per unit
	assert.Equal(t, "24", res.Total.MinorString())
}

func TestBulkDiscountValidation(t *testing.T) {
	for _, pct := range []int{-1, 101} {
		_, err := promotion.NewBulkDiscount(3, pct, nil)
		require.ErrorIs(t, err, promotion.ErrInvalidPromotion)
	}
	_, err := promotion.NewBulkDiscount(0, 10, nil)
	require.ErrorIs(t, err, promotion.ErrInvalidPromotion)
}

func TestBuyXGetYFree(t *testing.T) {
	promo, err := promotion.NewBuyXGetYFree(2, 1, []catalog.ProductCode{catalog.APE})
	require.NoError(t, err)
	assert.Equal(t, "buy2get1free", promo.ID())
	assert.Equal(t, "Buy 2 Get 1 Free", promo.Name())
	assert.Equal(t, 1, promo.Priority())

	tests := []struct {
		qty  int
		ok   bool
		paid int
	}{
		{1, false, 0},
		{2, false, 0},
		{3, true, 2},
		{4, true, 3},
		{5, true, 4},
		{6, true, 4},
		{7, true, 5},
	}
	for _, tt := range tests {
		res, ok, err := promo.Apply(item(t, catalog.APE, 1, tt.qty))
		require.NoError(t, err)
		require.Equal(t, tt.ok, ok, "qty %d", tt.qty)
		if !tt.ok {
			continue
		}
		want, err := money.FromMajor(int64(tt.paid))
		require.NoError(t, err)
		assert.True(t, want.Equal(res.Total), "qty %d: got %s", tt.qty, res.Total)
		assert.Equal(t, tt.paid, promo.PaidUnits(tt.qty))
	}

	res, _, err := promo.Apply(item(t, catalog.APE, 75, 3))
	require.NoError(t, err)
	assert.Equal(t, "Buy 2 Get 1 Free: 3 items, pay for 2", res.Description)
}

func TestBuyXGetYFreeValidation(t *testing.T) {
	_, err := promotion.NewBuyXGetYFree(0, 1, nil)
	require.ErrorIs(t, err, promotion.ErrInvalidPromotion)
	_, err = promotion.NewBuyXGetYFree(2, 0, nil)
	require.ErrorIs(t, err, promotion.ErrInvalidPromotion)
}

func TestOptionsOverrideIdentity(t *testing.T) {
	promo, err := promotion.NewBuyXGetYFree(2, 1, []catalog.ProductCode{catalog.APE},
		promotion.WithID("b2g1"), promotion.WithName("Promo"), promotion.WithPriority(7))
	require.NoError(t, err)
	assert.Equal(t, "b2g1", promo.ID())
	assert.Equal(t, "Promo", promo.Name())
	assert.Equal(t, 7, promo.Priority())
}

func TestEligibleIsCopied(t *testing.T) {
	eligible := []catalog.ProductCode{catalog.APE}
	promo, err := promotion.NewBuyXGetYFree(2, 1, eligible)
	require.NoError(t, err)
	eligible[0] = catalog.PUNK
	assert.True(t, promo.Applicable(item(t, catalog.APE, 1, 1)))

	got := promo.Eligible()
	got[0] = catalog.MEEBIT
	assert.Equal(t, []catalog.ProductCode{catalog.APE}, promo.Eligible())
}

func TestDefaultsAndNames(t *testing.T) {
	promos := promotion.Defaults()
	require.Len(t, promos, 2)
	assert.Equal(t, "buy2get1free", promos[0].ID())
	assert.Equal(t, "bulk20", promos[1].ID())

	assert.Equal(t, []string{"Buy 2 Get 1 Free", "20% Bulk Discount (3+)"}, promotion.NamesFor(promos, catalog.AZUKI))
	assert.Equal(t, []string{"20% Bulk Discount (3+)"}, promotion.NamesFor(promos, catalog.PUNK))
	assert.Empty(t, promotion.NamesFor(promos, catalog.MEEBIT))
}
