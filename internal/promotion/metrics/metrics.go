package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the promotions module.
type Metrics struct {
	// Full cart evaluation latency, catalog lookup included
	EvaluateLatency prometheus.Histogram

	// Outcomes by promotion and result
	PromotionOutcome *prometheus.CounterVec

	// Catalog lookups by source ("http", "cache")
	CatalogLatency *prometheus.HistogramVec

	// Product cache hits and misses
	CacheLookups *prometheus.CounterVec

	// Promotion cache reloads by trigger ("startup", "event", "local")
	Reloads *prometheus.CounterVec

	// Evaluation failures by error code
	EvaluateErrors *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the promotions metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "promotions_evaluate_duration_seconds",
			Help:    "Duration of cart evaluation including catalog lookup",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		PromotionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promotions_outcomes_total",
			Help: "Promotion outcomes by promotion id and result",
		}, []string{"promotion_id", "result"}), // result: "fulfilled", "almost_fulfilled"

		CatalogLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promotions_catalog_lookup_duration_seconds",
			Help:    "Duration of catalog lookups by source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promotions_product_cache_lookups_total",
			Help: "Product cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss"

		Reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promotions_cache_reloads_total",
			Help: "Promotion cache reloads by trigger",
		}, []string{"trigger"}),

		EvaluateErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promotions_evaluate_errors_total",
			Help: "Failed cart evaluations by error code",
		}, []string{"code"}),
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementFulfilled records a fulfilled run of a promotion.
func (m *Metrics) IncrementFulfilled(promotionID string) {
	if m != nil {
		m.PromotionOutcome.WithLabelValues(promotionID, "fulfilled").Inc()
	}
}

// IncrementAlmostFulfilled records an almost fulfilled promotion.
func (m *Metrics) IncrementAlmostFulfilled(promotionID string) {
	if m != nil {
		m.PromotionOutcome.WithLabelValues(promotionID, "almost_fulfilled").Inc()
	}
}

// ObserveCatalogLatency records the duration of a catalog lookup.
func (m *Metrics) ObserveCatalogLatency(source string, d time.Duration) {
	if m != nil {
		m.CatalogLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementCacheHit records products served from the cache.
func (m *Metrics) IncrementCacheHit(n int) {
	if m != nil && n > 0 {
		m.CacheLookups.WithLabelValues("hit").Add(float64(n))
	}
}

// IncrementCacheMiss records products missing from the cache.
func (m *Metrics) IncrementCacheMiss(n int) {
	if m != nil && n > 0 {
		m.CacheLookups.WithLabelValues("miss").Add(float64(n))
	}
}

// IncrementReload records a promotion cache reload.
func (m *Metrics) IncrementReload(trigger string) {
	if m != nil {
		m.Reloads.WithLabelValues(trigger).Inc()
	}
}

// IncrementEvaluateError records a failed evaluation.
func (m *Metrics) IncrementEvaluateError(code string) {
	if m != nil {
		m.EvaluateErrors.WithLabelValues(code).Inc()
	}
}
