package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Price is always a parsed decimal; see ParsePrice.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Color       string          `json:"color"`
	Style       string          `json:"style"`
	Tag         string          `json:"tag"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
}

// MarshalJSON writes price as a JSON number so it reads back exactly.
func (p Product) MarshalJSON() ([]byte, error) {
	type alias Product
	return json.Marshal(struct {
		alias
		Price json.Number `json:"price"`
	}{alias: alias(p), Price: json.Number(p.Price.String())})
}

// UnmarshalJSON accepts price as either a number or a formatted string such as "1.250.000đ".
func (p *Product) UnmarshalJSON(b []byte) error {
	type alias Product
	var raw struct {
		alias
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = Product(raw.alias)
	p.Price = decimal.Zero
	if len(raw.Price) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw.Price))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	p.Price = ParsePrice(v)
	return nil
}

// ParsePrice normalises a raw price. Strings keep only their digits, so currency
// symbols and thousands separators are dropped. Anything unparseable or negative is 0.
func ParsePrice(raw any) decimal.Decimal {
	var d decimal.Decimal
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		d = *v
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(v)
	case float32:
		return ParsePrice(float64(v))
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case int32:
		d = decimal.NewFromInt(int64(v))
	case string:
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, v)
		if digits == "" {
			return decimal.Zero
		}
		parsed, err := decimal.NewFromString(digits)
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
