// Package metrics provides Prometheus metrics for the adapter service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsTotal is a counter of finished jobs by outcome.
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_jobs_total",
			Help: "Total number of jobs processed",
		},
		[]string{"adapter", "endpoint", "status_code"},
	)

	// JobDuration is a histogram of end-to-end job latency.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapter_job_duration_seconds",
			Help:    "Duration of job execution from validation to envelope",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter", "endpoint"},
	)

	// ResolutionsTotal counts symbol resolutions by the tier that answered.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_symbol_resolutions_total",
			Help: "Total number of symbol resolutions by tier",
		},
		[]string{"adapter", "tier"},
	)

	// CatalogLookupsTotal counts remote catalog lookups.
	CatalogLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_catalog_lookups_total",
			Help: "Total number of remote catalog lookups",
		},
		[]string{"adapter", "status"},
	)

	// UpstreamCallsTotal counts upstream transport calls.
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_upstream_calls_total",
			Help: "Total number of upstream calls",
		},
		[]string{"adapter", "status"},
	)

	// UpstreamCallDuration is a histogram of upstream call latency.
	UpstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapter_upstream_call_duration_seconds",
			Help:    "Upstream call latencies",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"adapter"},
	)

	// ExtractionFailuresTotal counts result extraction failures.
	ExtractionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_extraction_failures_total",
			Help: "Total number of failed numeric extractions",
		},
		[]string{"adapter", "kind"},
	)

	// OmittedItemsTotal counts batch items dropped under the omit policy.
	OmittedItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_batch_omitted_items_total",
			Help: "Total number of batch items omitted from payloads",
		},
		[]string{"adapter"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

// Init initializes Prometheus metrics registry.
func Init() {
	prometheus.MustRegister(
		JobsTotal,
		JobDuration,
		ResolutionsTotal,
		CatalogLookupsTotal,
		UpstreamCallsTotal,
		UpstreamCallDuration,
		ExtractionFailuresTotal,
		OmittedItemsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address and path.
func ServeHTTP(addr, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordJob records a finished job.
func RecordJob(adapter, endpoint, statusCode string, duration time.Duration) {
	JobsTotal.WithLabelValues(adapter, endpoint, statusCode).Inc()
	JobDuration.WithLabelValues(adapter, endpoint).Observe(duration.Seconds())
}

// RecordResolution records a symbol resolved by the given tier.
func RecordResolution(adapter, tier string) {
	ResolutionsTotal.WithLabelValues(adapter, tier).Inc()
}

// RecordCatalogLookup records a remote catalog lookup.
func RecordCatalogLookup(adapter string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	CatalogLookupsTotal.WithLabelValues(adapter, status).Inc()
}

// RecordUpstreamCall records an upstream call.
func RecordUpstreamCall(adapter string, ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	UpstreamCallsTotal.WithLabelValues(adapter, status).Inc()
	UpstreamCallDuration.WithLabelValues(adapter).Observe(duration.Seconds())
}

// RecordExtractionFailure records a failed extraction.
func RecordExtractionFailure(adapter, kind string) {
	ExtractionFailuresTotal.WithLabelValues(adapter, kind).Inc()
}

// RecordOmitted records batch items dropped from a payload.
func RecordOmitted(adapter string, count int) {
	if count <= 0 {
		return
	}
	OmittedItemsTotal.WithLabelValues(adapter).Add(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
