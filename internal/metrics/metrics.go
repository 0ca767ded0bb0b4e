// Package metrics provides Prometheus metrics for the TimeGate service
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the TimeGate service
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// gRPC request metrics
	RPCRequestsTotal    *prometheus.CounterVec
	RPCRequestDuration  *prometheus.HistogramVec
	RPCRequestsInFlight prometheus.Gauge

	// Version store metrics
	StoreQueriesTotal  *prometheus.CounterVec
	StoreQueryDuration *prometheus.HistogramVec

	// Negotiation metrics
	NegotiationsTotal *prometheus.CounterVec

	ServerStartTime time.Time
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// HTTP request metrics
	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timegate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "timegate_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// gRPC request metrics
	m.RPCRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegate_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.RPCRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timegate_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.RPCRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "timegate_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Version store metrics
	m.StoreQueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegate_store_queries_total",
			Help: "Total number of version store queries",
		},
		[]string{"operation", "status"},
	)

	m.StoreQueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timegate_store_query_duration_seconds",
			Help:    "Duration of version store queries in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Negotiation metrics
	m.NegotiationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegate_negotiations_total",
			Help: "Total number of answered page and TimeGate requests by behaviour",
		},
		[]string{"behavior", "status"},
	)

	// Server metrics
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "timegate_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 {
			return time.Since(m.ServerStartTime).Seconds()
		},
	)

	return m
}

// RecordHTTPRequest records an HTTP request with its status
func (m *Metrics) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRPCRequest records a gRPC request with its status
func (m *Metrics) RecordRPCRequest(method string, status string, duration time.Duration) {
	m.RPCRequestsTotal.WithLabelValues(method, status).Inc()
	m.RPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordNegotiation counts one answered request by behaviour
func (m *Metrics) RecordNegotiation(behavior string, status int) {
	m.NegotiationsTotal.WithLabelValues(behavior, strconv.Itoa(status)).Inc()
}

// ObserveQuery lets the metrics observe a version.Locator
func (m *Metrics) ObserveQuery(op string, duration time.Duration, found bool, err error) {
	status := "found"
	switch {
	case err != nil:
		status = "error"
	case !found:
		status = "none"
	}
	m.StoreQueriesTotal.WithLabelValues(op, status).Inc()
	m.StoreQueryDuration.WithLabelValues(op).Observe(duration.Seconds())
}
