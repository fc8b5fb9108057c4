// Package cart keeps per-session shopping carts in the document store.
package cart

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/shopmate/internal/pricing"
)

var (
	// ErrInvalidQuantity is returned when a line would be added with a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrLineNotFound is returned when updating a product/size pair that is not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
)

// Cart is one shopper session's cart. Every stored line has quantity >= 1.
type Cart struct {
	ID        string         `json:"id"`
	Lines     []pricing.Line `json:"lines"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func sameLine(l pricing.Line, productID, size string) bool {
	return l.ProductID == productID && strings.EqualFold(l.Size, size)
}

func (c *Cart) find(productID, size string) int {
	for i, l := range c.Lines {
		if sameLine(l, productID, size) {
			return i
		}
	}
	return -1
}

// Add puts qty units of productID/size in the cart, merging with an existing line.
// The stored unit price is refreshed to unitPrice.
func (c *Cart) Add(productID, size string, unitPrice decimal.Decimal, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	size = strings.TrimSpace(size)
	if i := c.find(productID, size); i >= 0 {
		c.Lines[i].Quantity += qty
		c.Lines[i].UnitPrice = unitPrice
		return nil
	}
	c.Lines = append(c.Lines, pricing.Line{
		ProductID: productID,
		Size:      size,
		UnitPrice: unitPrice,
		Quantity:  qty,
	})
	return nil
}

// SetQuantity replaces a line's quantity. Zero or less removes the line.
func (c *Cart) SetQuantity(productID, size string, qty int) error {
	i := c.find(productID, strings.TrimSpace(size))
	if i < 0 {
		return ErrLineNotFound
	}
	if qty <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return nil
	}
	c.Lines[i].Quantity = qty
	return nil
}

// Remove drops the line if present.
func (c *Cart) Remove(productID, size string) {
	if i := c.find(productID, strings.TrimSpace(size)); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = []pricing.Line{}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
