package checkout

import (
	"time"

	"github.com/noah-isme/shopmate/internal/pricing"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPendingPayment  Status = "PENDING_PAYMENT"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusPaymentFailed   Status = "PAYMENT_FAILED"
)

// Customer holds the delivery contact captured at checkout.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
	Note    string `json:"note,omitempty"`
}

// Order is the document stored in the orders collection.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	CartID    string          `json:"cartId"`
	Customer  Customer        `json:"customer"`
	Lines     []pricing.Line  `json:"lines"`
	Summary   pricing.Summary `json:"summary"`
	VoucherID string          `json:"voucherId,omitempty"`
	Status    Status          `json:"status"`
	Gateway   string          `json:"gateway,omitempty"`
	PayURL    string          `json:"payUrl,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
