package pricing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/shopmate/internal/voucher"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func assertDec(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s: expected %s, got %s", name, want, got)
	}
}

func TestComputeScenarios(t *testing.T) {
	lines := []Line{{ProductID: "p1", UnitPrice: dec(100), Quantity: 2}}

	cases := []struct {
		name     string
		lines    []Line
		voucher  *voucher.Voucher
		subtotal int64
		shipping int64
		discount int64
		total    int64
	}{
		{
			name:  "percentage capped by max discount",
			lines: lines,
			voucher: &voucher.Voucher{
				Code: "TEN", DiscountType: voucher.Percentage, DiscountValue: dec(10),
				MinOrderAmount: dec(50), MaxDiscountAmount: decPtr(15), IsActive: true,
			},
			subtotal: 200, shipping: 10, discount: 15, total: 195,
		},
		{
			name:  "fixed discount floors total at zero",
			lines: lines,
			voucher: &voucher.Voucher{
				Code: "BIG", DiscountType: voucher.Fixed, DiscountValue: dec(300),
				MinOrderAmount: dec(50), IsActive: true,
			},
			subtotal: 200, shipping: 10, discount: 300, total: 0,
		},
		{
			name:  "empty cart charges nothing",
			lines: nil,
			voucher: &voucher.Voucher{
				Code: "ANY", DiscountType: voucher.Fixed, DiscountValue: dec(5), IsActive: true,
			},
			subtotal: 0, shipping: 0, discount: 5, total: 0,
		},
		{
			name:     "no voucher",
			lines:    lines,
			subtotal: 200, shipping: 10, discount: 0, total: 210,
		},
		{
			name:  "percentage without cap",
			lines: lines,
			voucher: &voucher.Voucher{
				Code: "HALF", DiscountType: voucher.Percentage, DiscountValue: dec(50), IsActive: true,
			},
			subtotal: 200, shipping: 10, discount: 100, total: 110,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Compute(tc.lines, dec(10), tc.voucher, now)
			assertDec(t, "subtotal", s.Subtotal, dec(tc.subtotal))
			assertDec(t, "shipping", s.Shipping, dec(tc.shipping))
			assertDec(t, "discount", s.Discount, dec(tc.discount))
			assertDec(t, "total", s.Total, dec(tc.total))
		})
	}
}

func TestComputeWithholdsDiscount(t *testing.T) {
	lines := []Line{{ProductID: "p1", UnitPrice: dec(100), Quantity: 2}}
	base := voucher.Voucher{
		Code: "X", DiscountType: voucher.Fixed, DiscountValue: dec(50),
		MinOrderAmount: dec(0), IsActive: true,
	}

	inactive := base
	inactive.IsActive = false
	expired := base
	expired.Expiry = now.Add(-time.Minute)
	belowMin := base
	belowMin.MinOrderAmount = dec(201)

	cases := map[string]struct {
		v    voucher.Voucher
		note string
	}{
		"inactive":  {inactive, voucher.ErrVoucherInactive.Error()},
		"expired":   {expired, voucher.ErrVoucherExpired.Error()},
		"below min": {belowMin, voucher.ErrMinimumSpendUnmet.Error()},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v := tc.v
			s := Compute(lines, dec(10), &v, now)
			assertDec(t, "discount", s.Discount, decimal.Zero)
			assertDec(t, "total", s.Total, dec(210))
			if s.VoucherNote != tc.note {
				t.Fatalf("expected note %q, got %q", tc.note, s.VoucherNote)
			}
			if s.VoucherCode != "X" {
				t.Fatalf("expected voucher code to be echoed, got %q", s.VoucherCode)
			}
		})
	}
}

func TestComputeDoesNotMutateVoucher(t *testing.T) {
	limit := 3
	v := voucher.Voucher{
		Code: "SAME", DiscountType: voucher.Percentage, DiscountValue: dec(10),
		MaxDiscountAmount: decPtr(15), UsageLimit: &limit, UsedCount: 1, IsActive: true,
	}
	before := v
	Compute([]Line{{UnitPrice: dec(100), Quantity: 2}}, dec(10), &v, now)
	if v.UsedCount != before.UsedCount || *v.UsageLimit != 3 || !v.MaxDiscountAmount.Equal(dec(15)) {
		t.Fatalf("voucher mutated: %+v", v)
	}
}

func TestComputeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(5) + 1
		lines := make([]Line, n)
		want := decimal.Zero
		for j := range lines {
			lines[j] = Line{UnitPrice: dec(rng.Int63n(1_000_000)), Quantity: rng.Intn(9) + 1}
			want = want.Add(lines[j].UnitPrice.Mul(dec(int64(lines[j].Quantity))))
		}
		maxDiscount := dec(rng.Int63n(200_000))
		v := &voucher.Voucher{
			DiscountType:      voucher.Percentage,
			DiscountValue:     dec(rng.Int63n(101)),
			MinOrderAmount:    dec(rng.Int63n(500_000)),
			MaxDiscountAmount: &maxDiscount,
			IsActive:          true,
		}
		s := Compute(lines, dec(30_000), v, now)

		assertDec(t, "subtotal", s.Subtotal, want)
		if s.Total.IsNegative() {
			t.Fatalf("total went negative: %s", s.Total)
		}
		if s.Discount.GreaterThan(maxDiscount) {
			t.Fatalf("discount %s exceeds cap %s", s.Discount, maxDiscount)
		}
		if s.Subtotal.LessThan(v.MinOrderAmount) && !s.Discount.IsZero() {
			t.Fatalf("discount %s applied below minimum spend", s.Discount)
		}

		dropped := Subtotal(lines[1:])
		assertDec(t, "removed line contribution", s.Subtotal.Sub(dropped), LineTotal(lines[0]))
	}
}

func TestSubtotalSkipsEmptyLines(t *testing.T) {
	got := Subtotal([]Line{{UnitPrice: dec(100), Quantity: 0}, {UnitPrice: dec(25), Quantity: 2}})
	assertDec(t, "subtotal", got, dec(50))
}
