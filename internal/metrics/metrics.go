package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Capture metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ezs2t_capture_active_sessions",
		Help: "Number of capture sessions currently running",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ezs2t_capture_sessions_total",
		Help: "Total number of finished capture sessions by stop reason",
	}, []string{"reason"})

	captureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ezs2t_capture_duration_seconds",
		Help:    "Length of captured audio in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	deviceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ezs2t_capture_device_errors_total",
		Help: "Total number of device errors reported during capture",
	})

	// Format pipeline metrics
	conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ezs2t_normalize_total",
		Help: "Total number of normalize calls by outcome",
	}, []string{"result"})

	conversionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ezs2t_normalize_latency_seconds",
		Help:    "Time spent transcoding audio in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Backend metrics
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ezs2t_backend_requests_total",
		Help: "Total number of transcription backend requests",
	}, []string{"endpoint", "status"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ezs2t_backend_request_latency_seconds",
		Help:    "Backend request latency until response headers in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"endpoint"})

	streamEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ezs2t_stream_events_total",
		Help: "Total number of transcription text increments received",
	})

	retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ezs2t_backend_retries_total",
		Help: "Total number of retried backend requests",
	}, []string{"endpoint"})
)

// SessionStarted marks a capture session as running
func SessionStarted() {
	activeSessions.Inc()
}

// SessionStopped records a finished capture session
func SessionStopped(reason string, captured time.Duration) {
	activeSessions.Dec()
	sessionsTotal.WithLabelValues(reason).Inc()
	captureDuration.Observe(captured.Seconds())
}

// DeviceError records a device error reported by the driver
func DeviceError() {
	deviceErrors.Inc()
}

// Normalized records a normalize call. result is "passthrough", "copied", "converted" or "failed".
func Normalized(result string, elapsed time.Duration) {
	conversions.WithLabelValues(result).Inc()
	if result == "converted" {
		conversionLatency.Observe(elapsed.Seconds())
	}
}

// Request records one backend round trip. status 0 means transport failure.
func Request(endpoint string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	requests.WithLabelValues(endpoint, label).Inc()
	requestLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Retry records a retried backend request
func Retry(endpoint string) {
	retries.WithLabelValues(endpoint).Inc()
}

// StreamEvent records one received text increment
func StreamEvent() {
	streamEvents.Inc()
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
