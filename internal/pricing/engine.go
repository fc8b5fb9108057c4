package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/shopmate/internal/voucher"
)

// Line is one product and size in a cart.
type Line struct {
	ProductID string          `json:"productId"`
	Size      string          `json:"size,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Shipping    decimal.Decimal `json:"shipping"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	VoucherCode string          `json:"voucherCode,omitempty"`
	// VoucherNote explains why a supplied voucher gave no discount.
	VoucherNote string `json:"voucherNote,omitempty"`
}

// LineTotal returns unit price times quantity. Lines with no quantity contribute nothing.
func LineTotal(l Line) decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal sums every line total.
func Subtotal(lines []Line) decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l))
	}
	return subtotal
}

// Compute calculates cart totals. A missing or ineligible voucher never fails the
// computation; it only withholds the discount and records the reason in VoucherNote.
func Compute(lines []Line, shippingFee decimal.Decimal, v *voucher.Voucher, now time.Time) Summary {
	subtotal := Subtotal(lines)
	shipping := decimal.Zero
	if len(lines) > 0 {
		shipping = shippingFee
	}

	summary := Summary{
		Subtotal: subtotal,
		Shipping: shipping,
		Discount: decimal.Zero,
	}
	if v != nil {
		summary.VoucherCode = v.Code
		if err := v.Validate(now, subtotal); err != nil {
			summary.VoucherNote = err.Error()
		} else {
			summary.Discount = v.Discount(subtotal)
		}
	}

	total := subtotal.Add(shipping).Sub(summary.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	summary.Total = total
	return summary
}
