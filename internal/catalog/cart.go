package catalog

import (
	"errors"
	"fmt"
)

// MaxUnitsPerProduct caps how many units of one product a Cart may hold.
const MaxUnitsPerProduct = 10_000

// ErrCart is returned for invalid scan or remove operations.
var ErrCart = errors.New("cart: invalid operation")

// Line is a product code and the number of scanned units.
type Line struct {
	Code     ProductCode
	Quantity int
}

// Cart accumulates scanned units per product. It is not safe for concurrent use.
type Cart struct {
	quantities map[ProductCode]int
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{quantities: make(map[ProductCode]int)}
}

// Scan adds one unit of code.
func (c *Cart) Scan(code ProductCode) error {
	if !code.Valid() {
		return fmt.Errorf("%w: %w %q", ErrCart, ErrUnknownProduct, string(code))
	}
	if c.quantities == nil {
		c.quantities = make(map[ProductCode]int)
	}
	if c.quantities[code] >= MaxUnitsPerProduct {
		return fmt.Errorf("%w: cannot add more of %s (max %d)", ErrCart, code, MaxUnitsPerProduct)
	}
	c.quantities[code]++
	return nil
}

// Remove takes one unit of code out of the cart.
func (c *Cart) Remove(code ProductCode) error {
	current := c.quantities[code]
	if current == 0 {
		return fmt.Errorf("%w: product %s not in cart", ErrCart, code)
	}
	if current == 1 {
		delete(c.quantities, code)
		return nil
	}
	c.quantities[code] = current - 1
	return nil
}

// Quantity returns the scanned units of code.
func (c *Cart) Quantity(code ProductCode) int {
	return c.quantities[code]
}

// Lines returns the non-empty lines in catalog order.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.quantities))
	for _, code := range All() {
		if qty := c.quantities[code]; qty > 0 {
			out = append(out, Line{Code: code, Quantity: qty})
		}
	}
	return out
}

// IsEmpty reports whether nothing has been scanned.
func (c *Cart) IsEmpty() bool {
	return len(c.quantities) == 0
}

// Clear removes every line.
func (c *Cart) Clear() {
	clear(c.quantities)
}
