package voucher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDiscountPercentCapped(t *testing.T) {
	maxDiscount := decimal.NewFromInt(15_000)
	v := Voucher{DiscountType: Percentage, DiscountValue: decimal.NewFromInt(20), MaxDiscountAmount: &maxDiscount}
	if got := v.Discount(decimal.NewFromInt(50_000)); !got.Equal(decimal.NewFromInt(10_000)) {
		t.Fatalf("expected 10000 discount, got %s", got)
	}
	if got := v.Discount(decimal.NewFromInt(100_000)); !got.Equal(maxDiscount) {
		t.Fatalf("expected capped discount 15000, got %s", got)
	}
}

func TestDiscountFixedIsNotCappedBySubtotal(t *testing.T) {
	v := Voucher{DiscountType: Fixed, DiscountValue: decimal.NewFromInt(300)}
	if got := v.Discount(decimal.NewFromInt(200)); !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected 300, got %s", got)
	}
}

func TestValidateOrder(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	v := Voucher{IsActive: true, MinOrderAmount: decimal.NewFromInt(100), Expiry: now.Add(time.Hour)}
	if err := v.Validate(now, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("expected eligible at min spend, got %v", err)
	}
	if err := v.Validate(now, decimal.NewFromInt(99)); !errors.Is(err, ErrMinimumSpendUnmet) {
		t.Fatalf("expected min spend error, got %v", err)
	}
	if err := v.Validate(now.Add(2*time.Hour), decimal.NewFromInt(100)); !errors.Is(err, ErrVoucherExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	v.IsActive = false
	if err := v.Validate(now, decimal.NewFromInt(100)); !errors.Is(err, ErrVoucherInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
	limit := 1
	capped := Voucher{IsActive: true, UsageLimit: &limit, UsedCount: 1}
	if err := capped.Validate(now, decimal.NewFromInt(100)); !errors.Is(err, ErrUsageLimitReached) {
		t.Fatalf("expected usage limit error, got %v", err)
	}
	noExpiry := Voucher{IsActive: true}
	if err := noExpiry.Validate(now.AddDate(50, 0, 0), decimal.Zero); err != nil {
		t.Fatalf("zero expiry should never expire, got %v", err)
	}
}

func TestExhausted(t *testing.T) {
	limit := 2
	v := Voucher{UsageLimit: &limit, UsedCount: 1}
	if v.Exhausted() {
		t.Fatalf("expected usable voucher")
	}
	v.UsedCount = 2
	if !v.Exhausted() {
		t.Fatalf("expected exhausted voucher")
	}
	if (Voucher{UsedCount: 1000}).Exhausted() {
		t.Fatalf("unlimited voucher reported exhausted")
	}
}

func TestVoucherJSONSchema(t *testing.T) {
	raw := `{"code":"sale10","discount":10,"discountType":"percentage","minOrderAmount":"50000",
		"maxDiscountAmount":20000,"usageLimit":5,"usedCount":1,"isActive":true,"expiryDate":"2030-01-01T00:00:00Z"}`
	var v Voucher
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.DiscountType != Percentage {
		t.Fatalf("expected PERCENTAGE, got %q", v.DiscountType)
	}
	if !v.DiscountValue.Equal(decimal.NewFromInt(10)) || !v.MinOrderAmount.Equal(decimal.NewFromInt(50_000)) {
		t.Fatalf("unexpected amounts: %+v", v)
	}
	if v.MaxDiscountAmount == nil || !v.MaxDiscountAmount.Equal(decimal.NewFromInt(20_000)) {
		t.Fatalf("expected max discount 20000, got %v", v.MaxDiscountAmount)
	}
	if v.UsageLimit == nil || *v.UsageLimit != 5 || v.Expiry.Year() != 2030 {
		t.Fatalf("unexpected limits: %+v", v)
	}
}
