package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shopmate/internal/payment"
	"github.com/noah-isme/shopmate/internal/resilience"
)

type stubGateway struct {
	name  string
	err   error
	calls int
}

func (g *stubGateway) Name() string { return g.name }

func (g *stubGateway) CreatePayment(_ context.Context, orderID, amount, _ string) (payment.Result, error) {
	g.calls++
	if g.err != nil {
		return payment.Result{}, g.err
	}
	return payment.Result{PayURL: "https://" + g.name + "/" + orderID + "?a=" + amount}, nil
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount string
		exp    int
		want   string
	}{
		{"215000", 0, "215000"},
		{"12.345", 2, "1235"},
		{"12.344", 2, "1234"},
		{"0", 2, "0"},
		{"99.5", 0, "100"},
		{"7", -1, "7"},
	}
	for _, tc := range cases {
		got := payment.MinorUnits(decimal.RequireFromString(tc.amount), tc.exp)
		require.Equal(t, tc.want, got, "amount %s exp %d", tc.amount, tc.exp)
	}
}

func TestHTTPGateway(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		if got["orderId"] == "bad" {
			_, _ = w.Write([]byte(`{"resultCode":42,"message":"amount invalid"}`))
			return
		}
		_, _ = w.Write([]byte(`{"resultCode":0,"payUrl":"https://pay/ok","message":"Success"}`))
	}))
	defer srv.Close()

	gw := &payment.HTTPGateway{HTTP: resilience.NewHTTPClient("payment", time.Second, nil), Endpoint: srv.URL}
	res, err := gw.CreatePayment(context.Background(), "o1", "215000", "Order o1")
	require.NoError(t, err)
	require.Equal(t, "https://pay/ok", res.PayURL)
	require.Equal(t, map[string]string{"orderId": "o1", "amount": "215000", "orderInfo": "Order o1"}, got)

	_, err = gw.CreatePayment(context.Background(), "bad", "1", "")
	require.ErrorIs(t, err, payment.ErrGatewayRejected)
	require.Contains(t, err.Error(), "amount invalid")

	_, err = (&payment.HTTPGateway{}).CreatePayment(context.Background(), "o1", "1", "")
	require.ErrorIs(t, err, payment.ErrNotConfigured)
}

func TestSimulated(t *testing.T) {
	res, err := payment.Simulated{RedirectBaseURL: "https://shop.test/pay/"}.CreatePayment(context.Background(), "o1", "1000", "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.PayURL, "https://shop.test/pay?"))
	require.Contains(t, res.PayURL, "orderId=o1")
}

func TestServicePrefersPrimary(t *testing.T) {
	primary := &stubGateway{name: "primary"}
	fallback := &stubGateway{name: "fallback"}
	svc := &payment.Service{Primary: primary, Fallback: fallback}

	p, err := svc.Create(context.Background(), "o1", decimal.NewFromInt(215_000), 0, "")
	require.NoError(t, err)
	require.Equal(t, "primary", p.Gateway)
	require.Equal(t, "215000", p.AmountMinor)
	require.Zero(t, fallback.calls)
}

func TestServiceFallsBack(t *testing.T) {
	primary := &stubGateway{name: "primary", err: errors.New("timeout")}
	fallback := &stubGateway{name: "fallback"}
	svc := &payment.Service{Primary: primary, Fallback: fallback}

	p, err := svc.Create(context.Background(), "o1", decimal.NewFromInt(10), 2, "")
	require.NoError(t, err)
	require.Equal(t, "fallback", p.Gateway)
	require.Equal(t, "1000", p.AmountMinor)
	require.Equal(t, 1, primary.calls)
}

func TestServiceUnavailable(t *testing.T) {
	primaryErr := errors.New("primary down")
	fallbackErr := errors.New("fallback down")
	svc := &payment.Service{
		Primary:  &stubGateway{name: "primary", err: primaryErr},
		Fallback: &stubGateway{name: "fallback", err: fallbackErr},
	}
	_, err := svc.Create(context.Background(), "o1", decimal.NewFromInt(1), 0, "")
	require.ErrorIs(t, err, payment.ErrPaymentUnavailable)
	require.ErrorIs(t, err, primaryErr)
	require.ErrorIs(t, err, fallbackErr)

	_, err = (&payment.Service{Primary: &stubGateway{name: "p", err: primaryErr}}).Create(context.Background(), "o1", decimal.NewFromInt(1), 0, "")
	require.ErrorIs(t, err, payment.ErrPaymentUnavailable)
	require.ErrorIs(t, err, primaryErr)

	_, err = (&payment.Service{}).Create(context.Background(), "o1", decimal.NewFromInt(1), 0, "")
	require.ErrorIs(t, err, payment.ErrPaymentUnavailable)
}
