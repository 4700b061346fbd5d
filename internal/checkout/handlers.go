package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/common"
	"github.com/noah-isme/nft-checkout/internal/prices"
	"github.com/noah-isme/nft-checkout/internal/pricing"
)

// Request limits.
const (
	MaxItems           = 50
	MaxQuantityPerItem = 1000
)

// ItemRequest is one requested cart line.
type ItemRequest struct {
	ProductCode string `json:"productCode" validate:"required"`
	Quantity    int    `json:"quantity" validate:"min=1,max=1000"`
}

// Request is the body of POST /api/checkout.
type Request struct {
	Items    []ItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	Provider string        `json:"provider,omitempty" validate:"omitempty,oneof=mock opensea"`
	Strategy string        `json:"strategy,omitempty"`
}

// Handler exposes the checkout quote endpoint.
type Handler struct {
	Svc             *Service
	Registry        *prices.Registry
	DefaultStrategy pricing.Strategy
	Validate        *validator.Validate
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", decodeDetail(err))
		return
	}
	lines, err := h.parse(payload)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	strategy := h.DefaultStrategy
	if strings.TrimSpace(payload.Strategy) != "" {
		strategy, err = pricing.ParseStrategy(payload.Strategy)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_STRATEGY", err.Error(), pricing.Kinds())
			return
		}
	}
	if strategy == nil {
		strategy = pricing.Min{}
	}
	provider, err := h.Registry.Get(payload.Provider)
	if err != nil {
		common.WriteError(w, prices.ToAppError(err))
		return
	}

	quote, err := h.Svc.Quote(r.Context(), provider, strategy, lines)
	if err != nil {
		mapped := toAppError(err)
		if common.StatusOf(mapped) >= http.StatusInternalServerError {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("provider", provider.Name()).Msg("checkout_failed")
		}
		common.WriteError(w, mapped)
		return
	}
	common.JSON(w, http.StatusOK, quote)
}

func (h *Handler) parse(payload Request) ([]catalog.Line, error) {
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			return nil, validationError(err)
		}
	}
	lines := make([]catalog.Line, 0, len(payload.Items))
	for _, item := range payload.Items {
		code, err := catalog.Parse(item.ProductCode)
		if err != nil {
			return nil, common.BadRequest("UNKNOWN_PRODUCT", fmt.Sprintf("Unknown product: %s", item.ProductCode), err)
		}
		lines = append(lines, catalog.Line{Code: code, Quantity: item.Quantity})
	}
	return lines, nil
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.BadRequest("VALIDATION_ERROR", err.Error(), err)
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fe.Namespace(), Rule: fe.Tag(), Param: fe.Param()})
	}
	code := "VALIDATION_ERROR"
	if verrs[0].Field() == "Provider" {
		code = "INVALID_PROVIDER"
	}
	return common.BadRequest(code, validationMessage(verrs[0]), err).WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch {
	case fe.Field() == "Items" && (fe.Tag() == "required" || fe.Tag() == "min"):
		return "Cart is empty"
	case fe.Field() == "Items" && fe.Tag() == "max":
		return fmt.Sprintf("Too many items (max %d)", MaxItems)
	case fe.Field() == "Quantity" && fe.Tag() == "max":
		return fmt.Sprintf("Quantity too large (max %d)", MaxQuantityPerItem)
	case fe.Field() == "Quantity":
		return fmt.Sprintf("Invalid quantity: %v", fe.Value())
	case fe.Field() == "ProductCode":
		return "Invalid product code"
	case fe.Field() == "Provider":
		return "provider must be one of: mock, opensea"
	}
	return fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag())
}

func decodeDetail(err error) any {
	if errors.Is(err, io.EOF) {
		return "request body is empty"
	}
	return err.Error()
}

func toAppError(err error) error {
	if errors.Is(err, ErrUnknownProduct) {
		return common.BadRequest("UNKNOWN_PRODUCT", strings.TrimPrefix(err.Error(), "checkout: "), err)
	}
	return prices.ToAppError(err)
}
