// Package metrics exposes the proxy's Prometheus counters, gauges, and
// histograms, in the idiom of prometheus/client_golang used across the
// registry and registry-proxy tooling this implementation draws on.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every counter the HTTP boundary and cache pipeline
// increment. A single instance is constructed at startup and registered
// against the default registry; handlers hold a reference to it rather
// than reaching for package-level globals, so tests can construct an
// isolated instance per case.
type Metrics struct {
	IncomingRequests  prometheus.Counter
	CachedResponses   prometheus.Counter
	UpstreamResponses prometheus.Counter
	ConnectedClients  prometheus.Gauge
	ResponseCode      *prometheus.CounterVec
	ResponseTime      *prometheus.HistogramVec
}

// New constructs and registers every metric against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IncomingRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "incoming_requests",
			Help: "Total number of requests received from clients.",
		}),
		CachedResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cached_responses",
			Help: "Total number of requests served from the local cache.",
		}),
		UpstreamResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upstream_responses",
			Help: "Total number of requests forwarded to an upstream registry.",
		}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "connected_clients",
			Help: "Number of client connections currently being served.",
		}),
		ResponseCode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "response_code",
			Help: "Responses by status code, request kind, and image.",
		}, []string{"statuscode", "type", "image"}),
		ResponseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "Request handling latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"env"}),
	}

	reg.MustRegister(
		m.IncomingRequests,
		m.CachedResponses,
		m.UpstreamResponses,
		m.ConnectedClients,
		m.ResponseCode,
		m.ResponseTime,
	)
	return m
}
