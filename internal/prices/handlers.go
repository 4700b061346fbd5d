package prices

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/common"
	"github.com/noah-isme/nft-checkout/internal/promotion"
)

// ProductPrice is one row of the price list.
type ProductPrice struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	PriceWei   string   `json:"priceWei"`
	PriceEth   string   `json:"priceEth"`
	Promotions []string `json:"promotions"`
}

// PriceList is the body of GET /api/prices.
type PriceList struct {
	Products  []ProductPrice `json:"products"`
	Provider  string         `json:"provider"`
	FetchedAt string         `json:"fetchedAt"`
}

// NewPriceList renders snap in catalog order, skipping products it has no price for.
func NewPriceList(provider string, snap Snapshot, promos []promotion.Promotion) PriceList {
	out := PriceList{Products: []ProductPrice{}, Provider: provider, FetchedAt: FormatTime(snap.FetchedAt)}
	for _, p := range catalog.Products() {
		price, ok := snap.Price(p.Code)
		if !ok {
			continue
		}
		out.Products = append(out.Products, ProductPrice{
			Code:       string(p.Code),
			Name:       p.Name,
			PriceWei:   price.MinorString(),
			PriceEth:   price.String(),
			Promotions: promotion.NamesFor(promos, p.Code),
		})
	}
	return out
}

// FormatTime renders t as UTC RFC 3339 with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Handler serves the price list.
type Handler struct {
	Registry   *Registry
	Promotions []promotion.Promotion
	Validate   *validator.Validate
}

type listQuery struct {
	Provider string `validate:"omitempty,oneof=mock opensea"`
}

// List handles GET /api/prices?provider=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "price registry not configured", nil)
		return
	}
	query := listQuery{Provider: r.URL.Query().Get("provider")}
	if h.Validate != nil {
		if err := h.Validate.Struct(query); err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_PROVIDER", "provider must be one of: mock, opensea", nil)
			return
		}
	}
	provider, err := h.Registry.Get(query.Provider)
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	snap, err := provider.Snapshot(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("provider", provider.Name()).Msg("price_list_failed")
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, NewPriceList(provider.Name(), snap, h.Promotions))
}

// ToAppError translates acquisition and registry errors into API errors. Other
// errors are returned unchanged.
func ToAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnknownProvider):
		return common.BadRequest("INVALID_PROVIDER", err.Error(), err)
	case errors.Is(err, ErrProviderUnavailable):
		return common.Unavailable("PROVIDER_UNAVAILABLE", "price provider unavailable", err)
	case errors.Is(err, ErrCircuitOpen):
		return common.Unavailable("CIRCUIT_OPEN", "price source temporarily disabled after repeated failures", err)
	case errors.Is(err, ErrAcquisitionFailed):
		return common.Unavailable("PRICES_UNAVAILABLE", "prices are currently unavailable", err)
	}
	return err
}
