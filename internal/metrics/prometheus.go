// Package metrics defines the Prometheus instrumentation for the sleep
// audio tracker. All Record helpers are safe to call on a nil *Metrics,
// which keeps the engine testable without a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the tracker service.
type Metrics struct {
	// Engine metrics
	BlocksProcessed prometheus.Counter
	QueueOverruns   prometheus.Counter
	QueueSize       prometheus.Gauge
	SmoothedLevelDB prometheus.Gauge

	// Capture metrics
	CapturesStarted prometheus.Counter
	ClipsWritten    prometheus.Counter
	ClipsDiscarded  prometheus.Counter
	ClipFailures    prometheus.Counter
	ClipDuration    prometheus.Histogram
	ClipSamples     prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		BlocksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleepaudio_blocks_processed_total",
			Help: "Total number of audio blocks processed by the engine",
		}),
		QueueOverruns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleepaudio_queue_overruns_total",
			Help: "Total number of blocks dropped because the hand-off queue was full",
		}),
		QueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sleepaudio_queue_size",
			Help: "Current number of blocks waiting in the hand-off queue",
		}),
		SmoothedLevelDB: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sleepaudio_smoothed_level_db",
			Help: "Current exponentially smoothed input level in dBFS",
		}),

		CapturesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleepaudio_captures_started_total",
			Help: "Total number of captures armed",
		}),
		ClipsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleepaudio_clips_written_total",
			Help: "Total number of clips handed to the sink successfully",
		}),
		ClipsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleepaudio_clips_discarded_total",
			Help: "Total number of captures discarded for being too short",
		}),
		ClipFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleepaudio_clip_failures_total",
			Help: "Total number of clip sink write failures",
		}),
		ClipDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sleepaudio_clip_duration_seconds",
			Help:    "Duration of written clips",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),
		ClipSamples: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sleepaudio_clip_samples",
			Help:    "Sample count of written clips",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sleepaudio_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sleepaudio_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sleepaudio_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordBlockProcessed updates the per-block engine gauges and counter.
func (m *Metrics) RecordBlockProcessed(smoothedDB float64, queueSize int) {
	if m == nil {
		return
	}
	m.BlocksProcessed.Inc()
	m.SmoothedLevelDB.Set(smoothedDB)
	m.QueueSize.Set(float64(queueSize))
}

// RecordQueueOverrun counts a dropped block.
func (m *Metrics) RecordQueueOverrun() {
	if m == nil {
		return
	}
	m.QueueOverruns.Inc()
}

// RecordCaptureStarted counts an armed capture.
func (m *Metrics) RecordCaptureStarted() {
	if m == nil {
		return
	}
	m.CapturesStarted.Inc()
}

// RecordClipWritten records a successfully emitted clip.
func (m *Metrics) RecordClipWritten(durationSeconds float64, samples int) {
	if m == nil {
		return
	}
	m.ClipsWritten.Inc()
	m.ClipDuration.Observe(durationSeconds)
	m.ClipSamples.Observe(float64(samples))
}

// RecordClipDiscarded counts a capture rejected by the minimum-length rule.
func (m *Metrics) RecordClipDiscarded() {
	if m == nil {
		return
	}
	m.ClipsDiscarded.Inc()
}

// RecordClipWriteFailure counts a sink write failure.
func (m *Metrics) RecordClipWriteFailure() {
	if m == nil {
		return
	}
	m.ClipFailures.Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
