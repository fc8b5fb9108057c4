package voucher

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no voucher matches the requested code or id.
	ErrNotFound = errors.New("voucher not found")
	// ErrDuplicateCode is returned when seeding a code that already exists.
	ErrDuplicateCode = errors.New("voucher code already exists")
	// ErrDuplicateID is returned when seeding with an id another voucher already uses.
	ErrDuplicateID = errors.New("voucher id already exists")
	// ErrUsageLimitReached indicates the voucher has exhausted the global usage quota.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
	// ErrVoucherInactive is returned when the voucher has been switched off.
	ErrVoucherInactive = errors.New("voucher not active")
	// ErrVoucherExpired is returned when the voucher has already expired.
	ErrVoucherExpired = errors.New("voucher expired")
	// ErrMinimumSpendUnmet indicates the order subtotal did not meet the voucher requirement.
	ErrMinimumSpendUnmet = errors.New("voucher minimum spend not met")
)

// DiscountType selects the discount formula.
type DiscountType string

const (
	Percentage DiscountType = "PERCENTAGE"
	Fixed      DiscountType = "FIXED"
)

// UnmarshalJSON accepts any casing ("percentage", "Fixed").
func (d *DiscountType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = DiscountType(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// Valid reports whether d is a known discount type.
func (d DiscountType) Valid() bool {
	return d == Percentage || d == Fixed
}

// Voucher is the stored voucher document.
type Voucher struct {
	ID                string           `json:"id"`
	Code              string           `json:"code"`
	DiscountType      DiscountType     `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discount"`
	MinOrderAmount    decimal.Decimal  `json:"minOrderAmount"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
	UsageLimit        *int             `json:"usageLimit,omitempty"`
	UsedCount         int              `json:"usedCount"`
	IsActive          bool             `json:"isActive"`
	// Expiry is the instant after which the voucher stops applying. Zero never expires.
	Expiry time.Time `json:"expiryDate"`
}

// Validate reports why the voucher cannot discount subtotal at now, or nil when it can.
// A voucher at its usage cap is ineligible here; the cap itself is enforced when usage is reserved.
func (v Voucher) Validate(now time.Time, subtotal decimal.Decimal) error {
	if !v.IsActive {
		return ErrVoucherInactive
	}
	if v.Exhausted() {
		return ErrUsageLimitReached
	}
	if !v.Expiry.IsZero() && now.After(v.Expiry) {
		return ErrVoucherExpired
	}
	if subtotal.LessThan(v.MinOrderAmount) {
		return ErrMinimumSpendUnmet
	}
	return nil
}

// Discount returns the raw discount for subtotal, ignoring eligibility.
// FIXED discounts are not capped at the subtotal; callers floor the order total instead.
func (v Voucher) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	if v.DiscountType == Fixed {
		discount = v.DiscountValue
	} else {
		discount = subtotal.Mul(v.DiscountValue).Div(decimal.NewFromInt(100))
		if v.MaxDiscountAmount != nil && discount.GreaterThan(*v.MaxDiscountAmount) {
			discount = *v.MaxDiscountAmount
		}
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// Exhausted reports whether the usage cap has been reached.
func (v Voucher) Exhausted() bool {
	return v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit
}

// Usable reports whether the voucher would be listed to shoppers at now.
func (v Voucher) Usable(now time.Time) bool {
	if !v.IsActive || v.Exhausted() {
		return false
	}
	return v.Expiry.IsZero() || !now.After(v.Expiry)
}

// NormalizeCode canonicalises a voucher code for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
