package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// IntentExtractTotal counts intent extractions by source (rules, model, fallback) and result.
	IntentExtractTotal *prometheus.CounterVec
	// AssistantReplyTotal counts assistant replies by outcome.
	AssistantReplyTotal *prometheus.CounterVec
	// VoucherEvaluationTotal counts voucher lookups and reservations by result.
	VoucherEvaluationTotal *prometheus.CounterVec
	// PaymentCreateTotal counts payment link creation attempts per gateway.
	PaymentCreateTotal *prometheus.CounterVec
	// ExternalCallLatency records upstream call latency in milliseconds.
	ExternalCallLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers the domain collectors once per process.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		IntentExtractTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_extract_total",
			Help:      "Count of intent extractions by source and result.",
		}, []string{"source", "result"}))
		AssistantReplyTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_reply_total",
			Help:      "Count of assistant replies by outcome.",
		}, []string{"outcome"}))
		VoucherEvaluationTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voucher_evaluation_total",
			Help:      "Count of voucher evaluations by result.",
		}, []string{"result"}))
		PaymentCreateTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_create_total",
			Help:      "Count of payment creation attempts by gateway and result.",
		}, []string{"gateway", "result"}))
		ExternalCallLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_ms",
			Help:      "Latency of upstream calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"target"}))
	})
}

// CountIntent increments IntentExtractTotal when metrics are registered.
func CountIntent(source, result string) {
	if IntentExtractTotal != nil {
		IntentExtractTotal.WithLabelValues(source, result).Inc()
	}
}

// CountAssistantReply increments AssistantReplyTotal when metrics are registered.
func CountAssistantReply(outcome string) {
	if AssistantReplyTotal != nil {
		AssistantReplyTotal.WithLabelValues(outcome).Inc()
	}
}

// CountVoucher increments VoucherEvaluationTotal when metrics are registered.
func CountVoucher(result string) {
	if VoucherEvaluationTotal != nil {
		VoucherEvaluationTotal.WithLabelValues(result).Inc()
	}
}

// CountPayment increments PaymentCreateTotal when metrics are registered.
func CountPayment(gateway, result string) {
	if PaymentCreateTotal != nil {
		PaymentCreateTotal.WithLabelValues(gateway, result).Inc()
	}
}

// ObserveExternalCall records the time since start for target.
func ObserveExternalCall(target string, start time.Time) {
	if ExternalCallLatency != nil {
		ExternalCallLatency.WithLabelValues(target).Observe(DurationMillis(time.Since(start)))
	}
}
