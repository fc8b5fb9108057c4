package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shopmate",
		Subsystem: "upstream",
		Name:      "breaker_state",
		Help:      "Breaker position per upstream: 0=closed, 1=open, 2=half-open.",
	}, []string{"upstream"})
	breakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopmate",
		Subsystem: "upstream",
		Name:      "breaker_transitions_total",
		Help:      "Breaker state changes per upstream.",
	}, []string{"upstream", "from", "to"})
)

func init() {
	prometheus.MustRegister(breakerState, breakerTransitions)
}
