package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics counts checkout and cart reconciliation outcomes.
type StorefrontMetrics struct {
	checkouts     *prometheus.CounterVec
	pixLatency    prometheus.Histogram
	reconciles    *prometheus.CounterVec
	mergedItems   prometheus.Counter
	liveListeners *prometheus.GaugeVec
}

const (
	OutcomeSuccess         = "success"
	OutcomeValidation      = "validation_error"
	OutcomeGatewayError    = "gateway_error"
	OutcomeDependencyError = "dependency_error"

	ReconcileMerged  = "merged"
	ReconcileNoop    = "noop"
	ReconcileFailed  = "failed"
	ReconcileSkipped = "skipped"
)

// NewStorefrontMetrics registers the storefront metrics on reg. A nil registerer yields a no-op recorder.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	m := &StorefrontMetrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acai_checkout_total",
			Help: "Checkout attempts by payment method and outcome.",
		}, []string{"method", "outcome"}),
		pixLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acai_pix_create_duration_seconds",
			Help:    "Latency of PIX payment creation at the gateway.",
			Buckets: prometheus.DefBuckets,
		}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acai_cart_reconcile_total",
			Help: "Anonymous cart reconciliations by result.",
		}, []string{"result"}),
		mergedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acai_cart_reconcile_items_total",
			Help: "Anonymous cart lines carried into authenticated carts.",
		}),
		liveListeners: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "acai_live_listeners",
			Help: "Open live update streams by kind.",
		}, []string{"stream"}),
	}
	reg.MustRegister(m.checkouts, m.pixLatency, m.reconciles, m.mergedItems, m.liveListeners)
	return m
}

// Checkout records one checkout attempt.
func (m *StorefrontMetrics) Checkout(method, outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// ObservePixCreate records gateway latency.
func (m *StorefrontMetrics) ObservePixCreate(d time.Duration) {
	if m == nil || m.pixLatency == nil {
		return
	}
	m.pixLatency.Observe(d.Seconds())
}

// Reconcile records a reconciliation result and how many anonymous lines it carried.
func (m *StorefrontMetrics) Reconcile(result string, items int) {
	if m == nil || m.reconciles == nil {
		return
	}
	m.reconciles.WithLabelValues(normalizeLabel(result)).Inc()
	if items > 0 {
		m.mergedItems.Add(float64(items))
	}
}

// ListenerOpened tracks an open live stream; call the returned func on close.
func (m *StorefrontMetrics) ListenerOpened(stream string) func() {
	if m == nil || m.liveListeners == nil {
		return func() {}
	}
	g := m.liveListeners.WithLabelValues(normalizeLabel(stream))
	g.Inc()
	return g.Dec
}
