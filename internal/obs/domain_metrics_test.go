package obs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDomainCountersAreNilSafeThenCount(t *testing.T) {
	CountPayment("primary", "ok")

	MustRegisterDomainMetrics("shopmate_test", prometheus.NewRegistry())
	before := testutil.ToFloat64(PaymentCreateTotal.WithLabelValues("primary", "ok"))
	CountPayment("primary", "ok")
	CountVoucher("found")
	if got := testutil.ToFloat64(PaymentCreateTotal.WithLabelValues("primary", "ok")); got != before+1 {
		t.Fatalf("expected payment counter to advance by 1, got %v -> %v", before, got)
	}
	if got := testutil.ToFloat64(VoucherEvaluationTotal.WithLabelValues("found")); got < 1 {
		t.Fatalf("expected voucher counter incremented, got %v", got)
	}
}
