package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CheckoutMetrics struct {
	Redirects       *prometheus.CounterVec
	PaymentOutcomes *prometheus.CounterVec
	SyncFailures    *prometheus.CounterVec
	QuoteLatencyMS  prometheus.Histogram
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	redirects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "checkout",
		Name:      "guard_redirects_total",
		Help:      "Checkout step entries redirected by a failed guard.",
	}, []string{"requested", "target"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "checkout",
		Name:      "payment_outcomes_total",
		Help:      "Payment confirmations by outcome.",
	}, []string{"outcome"})
	syncFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "cart",
		Name:      "sync_failures_total",
		Help:      "Cart mutations the remote cart API rejected or never received.",
	}, []string{"operation"})
	quoteLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "marketplace",
		Subsystem: "checkout",
		Name:      "quote_duration_ms",
		Help:      "Shipping quote request latency in milliseconds.",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000},
	})

	reg.MustRegister(redirects, outcomes, syncFailures, quoteLatency)

	return &CheckoutMetrics{
		Redirects:       redirects,
		PaymentOutcomes: outcomes,
		SyncFailures:    syncFailures,
		QuoteLatencyMS:  quoteLatency,
	}
}

// NewNop returns metrics registered on a private registry, for tests and tools.
func NewNop() *CheckoutMetrics {
	return NewCheckoutMetrics(prometheus.NewRegistry())
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
