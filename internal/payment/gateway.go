// Package payment opens payment links for orders through an upstream gateway.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/shopmate/internal/resilience"
)

var (
	// ErrGatewayRejected is returned when the gateway answers with a nonzero result code.
	ErrGatewayRejected = errors.New("payment: gateway rejected request")
	// ErrNotConfigured is returned by a gateway without an endpoint.
	ErrNotConfigured = errors.New("payment: gateway not configured")
)

// Result is the gateway's answer to a create-payment request.
type Result struct {
	PayURL     string `json:"payUrl"`
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// Gateway creates a payment for an order amount expressed in minor units.
type Gateway interface {
	Name() string
	CreatePayment(ctx context.Context, orderID, amountMinor, info string) (Result, error)
}

// HTTPGateway posts payment requests to a JSON endpoint. Request signing is
// handled behind that endpoint.
type HTTPGateway struct {
	HTTP     resilience.HTTPClient
	Endpoint string
}

type createRequest struct {
	OrderID   string `json:"orderId"`
	Amount    string `json:"amount"`
	OrderInfo string `json:"orderInfo"`
}

// Name labels metrics and logs.
func (g *HTTPGateway) Name() string { return "http" }

// CreatePayment sends one create request and validates the result code.
func (g *HTTPGateway) CreatePayment(ctx context.Context, orderID, amountMinor, info string) (Result, error) {
	if g == nil || strings.TrimSpace(g.Endpoint) == "" {
		return Result{}, ErrNotConfigured
	}
	var res Result
	body := createRequest{OrderID: orderID, Amount: amountMinor, OrderInfo: info}
	if err := g.HTTP.DoJSON(ctx, http.MethodPost, g.Endpoint, nil, body, &res); err != nil {
		return Result{}, fmt.Errorf("create payment: %w", err)
	}
	if res.ResultCode != 0 {
		return res, fmt.Errorf("%w: code %d: %s", ErrGatewayRejected, res.ResultCode, res.Message)
	}
	if strings.TrimSpace(res.PayURL) == "" {
		return res, fmt.Errorf("%w: missing payUrl", ErrGatewayRejected)
	}
	return res, nil
}

// Simulated returns a canned pay URL. It stands in for the gateway in development.
type Simulated struct {
	RedirectBaseURL string
}

// Name labels metrics and logs.
func (Simulated) Name() string { return "simulated" }

// CreatePayment never fails.
func (s Simulated) CreatePayment(_ context.Context, orderID, amountMinor, _ string) (Result, error) {
	base := strings.TrimRight(s.RedirectBaseURL, "/")
	if base == "" {
		base = "https://pay.example.invalid/checkout"
	}
	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("amount", amountMinor)
	return Result{PayURL: base + "?" + q.Encode(), Message: "simulated"}, nil
}

// MinorUnits renders amount × 10^exp as an integer string, rounding half up.
func MinorUnits(amount decimal.Decimal, exp int) string {
	if exp < 0 {
		exp = 0
	}
	return amount.Shift(int32(exp)).Round(0).StringFixed(0)
}
