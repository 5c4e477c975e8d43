// Package metrics exposes Prometheus collectors for the screenshot service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	admissionInUse             prometheus.Gauge
	submissionsTotal           *prometheus.CounterVec
	pollErrorsTotal            prometheus.Counter
	downloadBytesTotal         *prometheus.CounterVec
	downloadsTotal             *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		admissionInUse = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "screenshots_admission_slots_in_use",
			Help: "Remote job slots currently held against the session limit.",
		})

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshots_submissions_total",
				Help: "Job submissions, labeled by result.",
			},
			[]string{"result"},
		)

		pollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "screenshots_poll_errors_total",
			Help: "Failed job status fetches.",
		})

		downloadBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshots_download_bytes_total",
				Help: "Bytes downloaded, labeled by kind (image or thumbnail).",
			},
			[]string{"kind"},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshots_downloads_total",
				Help: "Download attempts, labeled by kind and result.",
			},
			[]string{"kind", "result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AdmissionGauge returns the gauge tracking held admission slots.
func AdmissionGauge() prometheus.Gauge {
	Init()
	return admissionInUse
}

// ObserveSubmission counts a submission attempt ("accepted" or "rejected").
func ObserveSubmission(result string) {
	Init()
	submissionsTotal.WithLabelValues(result).Inc()
}

// ObservePollError counts one failed status fetch.
func ObservePollError() {
	Init()
	pollErrorsTotal.Inc()
}

// ObserveDownload records a download attempt and its size.
func ObserveDownload(kind string, n int, err error) {
	Init()
	result := "ok"
	if err != nil {
		result = "error"
	}
	downloadsTotal.WithLabelValues(kind, result).Inc()
	if n > 0 {
		downloadBytesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
