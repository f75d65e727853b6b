package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the backend.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	contentWindow   prometheus.Histogram
	recordsImported prometheus.Counter
	records         prometheus.Gauge
	views           prometheus.Gauge
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxylog_requests_total",
				Help: "Total number of API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxylog_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		contentWindow: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxylog_content_window_size",
				Help:    "Number of offsets requested per content call",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		recordsImported: f.NewCounter(
			prometheus.CounterOpts{
				Name: "proxylog_records_imported_total",
				Help: "Records added through the import endpoint",
			},
		),
		records: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxylog_records",
				Help: "Records currently held by the backend",
			},
		),
		views: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxylog_filter_views",
				Help: "Filter views currently cached",
			},
		),
	}
}
