// Package intent turns free-text shopping requests into product filters and
// applies those filters to the catalog.
package intent

import (
	"github.com/shopspring/decimal"
)

// Filter is a set of optional product constraints. Empty strings and nil prices
// leave a dimension unconstrained.
type Filter struct {
	Brand    string           `json:"brand,omitempty"`
	Color    string           `json:"color,omitempty"`
	Style    string           `json:"style,omitempty"`
	Category string           `json:"category,omitempty"`
	Tag      string           `json:"tag,omitempty"`
	MinPrice *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice *decimal.Decimal `json:"maxPrice,omitempty"`
}

// IsEmpty reports whether no dimension is constrained.
func (f Filter) IsEmpty() bool {
	return f.Brand == "" && f.Color == "" && f.Style == "" && f.Category == "" &&
		f.Tag == "" && f.MinPrice == nil && f.MaxPrice == nil
}

// Source records which path produced a Filter.
type Source string

const (
	// SourceRules means the keyword rules ran because no model is configured.
	SourceRules Source = "rules"
	// SourceModel means the filter came from the text-generation model.
	SourceModel Source = "model"
	// SourceFallback means the model failed and the keyword rules were used instead.
	SourceFallback Source = "fallback"
)

func price(d decimal.Decimal) *decimal.Decimal {
	return &d
}
