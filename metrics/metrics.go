/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dataprovider"

// Metrics holds the collectors of one provider. A nil *Metrics records
// nothing.
type Metrics struct {
	// BackendCalls counts backend operations by name and outcome.
	BackendCalls *prometheus.CounterVec
	// BackendDuration is the latency of backend operations.
	BackendDuration *prometheus.HistogramVec
	// OutOfRange counts list requests answered empty because the page was
	// never reached.
	OutOfRange *prometheus.CounterVec
	// BatchFailures counts ids dropped from batch verbs.
	BatchFailures *prometheus.CounterVec
	// HTTPRequests counts requests served by the HTTP surface.
	HTTPRequests *prometheus.CounterVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		BackendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Total number of backend operations",
			},
			[]string{"operation", "status"},
		),
		BackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "Backend operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OutOfRange: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "out_of_range_pages_total",
				Help:      "List requests for pages whose predecessor was never fetched",
			},
			[]string{"query"},
		),
		BatchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_failures_total",
				Help:      "Ids dropped from batch operations",
			},
			[]string{"verb", "resource"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		registerer: reg,
		gatherer:   reg,
	}
}

// ObserveCall records one backend operation that started at start.
func (m *Metrics) ObserveCall(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BackendCalls.WithLabelValues(operation, status).Inc()
	m.BackendDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// IncOutOfRange records an out-of-range page request.
func (m *Metrics) IncOutOfRange(query string) {
	if m == nil {
		return
	}
	m.OutOfRange.WithLabelValues(query).Inc()
}

// IncBatchFailure records an id dropped from a batch verb.
func (m *Metrics) IncBatchFailure(verb, resource string) {
	if m == nil {
		return
	}
	m.BatchFailures.WithLabelValues(verb, resource).Inc()
}

// IncHTTPRequest records a served request.
func (m *Metrics) IncHTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
}

// TrackCursors exposes the number of query identities a cursor store holds.
func (m *Metrics) TrackCursors(name string, size func() int) {
	if m == nil {
		return
	}
	promauto.With(m.registerer).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "cursor_identities",
			Help:        "Query identities with recorded cursors",
			ConstLabels: prometheus.Labels{"store": name},
		},
		func() float64 { return float64(size()) },
	)
}

// Handler returns the HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
