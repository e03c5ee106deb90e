// Package metrics holds the HTTP-level Prometheus metrics shared by every route.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"promotions/pkg/platform/middleware/request"
)

// Metrics holds the HTTP server metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

// New creates and registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promotions_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "promotions_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
}

// Middleware records latency by chi route pattern. A nil receiver is a no-op.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		sw := &request.StatusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := sw.Status
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
