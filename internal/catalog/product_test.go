package catalog

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want string
	}{
		{"nil", nil, "0"},
		{"int", 250000, "250000"},
		{"float", 99.5, "99.5"},
		{"json number", json.Number("1200000"), "1200000"},
		{"formatted vnd", "1.250.000đ", "1250000"},
		{"comma separated", "3,990,000 VND", "3990000"},
		{"no digits", "liên hệ", "0"},
		{"empty", "", "0"},
		{"negative number", -10, "0"},
		{"nan", math.NaN(), "0"},
		{"unsupported type", []string{"1"}, "0"},
		{"decimal", decimal.RequireFromString("42.25"), "42.25"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParsePrice(tc.raw)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("ParsePrice(%v) = %s, want %s", tc.raw, got, tc.want)
			}
		})
	}
}

func TestProductJSONPrice(t *testing.T) {
	var fromString Product
	if err := json.Unmarshal([]byte(`{"id":"p1","name":"Air","price":"3.500.000 ₫"}`), &fromString); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !fromString.Price.Equal(decimal.NewFromInt(3_500_000)) {
		t.Fatalf("expected 3500000, got %s", fromString.Price)
	}

	var broken Product
	if err := json.Unmarshal([]byte(`{"id":"p2","price":{"amount":1}}`), &broken); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !broken.Price.IsZero() || broken.ID != "p2" {
		t.Fatalf("expected zero price for malformed field, got %+v", broken)
	}

	fractional := Product{ID: "p3", Price: decimal.RequireFromString("12.5")}
	data, err := json.Marshal(fractional)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var back Product
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !back.Price.Equal(fractional.Price) {
		t.Fatalf("round trip changed price: %s -> %s (%s)", fractional.Price, back.Price, data)
	}
}
