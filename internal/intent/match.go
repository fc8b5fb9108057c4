package intent

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/shopmate/internal/catalog"
)

// Match returns the products satisfying every constrained dimension of f, in
// catalog order. An empty filter returns nil without looking at the catalog.
func Match(f Filter, products []catalog.Product) []catalog.Product {
	if f.IsEmpty() {
		return nil
	}
	brand := fold(f.Brand)
	color := fold(f.Color)
	style := fold(f.Style)
	category := fold(f.Category)
	tag := fold(f.Tag)

	out := make([]catalog.Product, 0)
	for _, p := range products {
		if tag != "" && !contains(p.Tag, tag) {
			continue
		}
		if brand != "" && !contains(p.Brand, brand) {
			continue
		}
		if color != "" && !anyContains(color, p.Name, p.Description, p.Color) {
			continue
		}
		if style != "" && !anyContains(style, p.Name, p.Description, p.Style) {
			continue
		}
		if category != "" && !contains(p.Category, category) {
			continue
		}
		// Unparseable prices were stored as 0: they fail any minimum and pass any maximum.
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Top returns at most n products from the front of the list.
func Top(products []catalog.Product, n int) []catalog.Product {
	if n <= 0 || len(products) <= n {
		return products
	}
	return products[:n]
}

// fold lowercases s in NFC so precomposed and combining Vietnamese marks compare equal.
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

func contains(field, needle string) bool {
	return strings.Contains(fold(field), needle)
}

func anyContains(needle string, fields ...string) bool {
	for _, f := range fields {
		if contains(f, needle) {
			return true
		}
	}
	return false
}
