package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownProduct is returned when a code is not part of the catalog.
var ErrUnknownProduct = errors.New("catalog: unknown product")

// ProductCode identifies one of the fixed catalog entries.
type ProductCode string

const (
	APE    ProductCode = "APE"
	PUNK   ProductCode = "PUNK"
	AZUKI  ProductCode = "AZUKI"
	MEEBIT ProductCode = "MEEBIT"
)

// Product holds the display and upstream metadata for a catalog entry.
type Product struct {
	Code ProductCode
	Name string
	// Slug is the OpenSea collection slug used to look up the floor price.
	Slug string
}

var products = []Product{
	{Code: APE, Name: "Bored Apes", Slug: "boredapeyachtclub"},
	{Code: PUNK, Name: "Crypto Punks", Slug: "cryptopunks"},
	{Code: AZUKI, Name: "Azuki", Slug: "azuki"},
	{Code: MEEBIT, Name: "Meebits", Slug: "meebits"},
}

// All returns every product code in canonical order.
func All() []ProductCode {
	out := make([]ProductCode, len(products))
	for i, p := range products {
		out[i] = p.Code
	}
	return out
}

// Products returns the catalog in canonical order.
func Products() []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}

// Lookup returns the product for code.
func Lookup(code ProductCode) (Product, bool) {
	for _, p := range products {
		if p.Code == code {
			return p, true
		}
	}
	return Product{}, false
}

// Parse converts a raw string into a ProductCode. Matching is exact.
func Parse(raw string) (ProductCode, error) {
	code := ProductCode(raw)
	if !code.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProduct, raw)
	}
	return code, nil
}

// Valid reports whether the code belongs to the catalog.
func (c ProductCode) Valid() bool {
	_, ok := Lookup(c)
	return ok
}

// Name returns the display name, or the raw code for unknown products.
func (c ProductCode) Name() string {
	if p, ok := Lookup(c); ok {
		return p.Name
	}
	return string(c)
}

func (c ProductCode) String() string { return string(c) }
