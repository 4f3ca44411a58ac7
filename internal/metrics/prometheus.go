// Package metrics defines the Prometheus instrumentation for the
// dictation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dictation service.
type Metrics struct {
	// Session lifecycle metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    prometheus.Counter
	SessionsCancelled prometheus.Counter
	SessionsRecovered prometheus.Counter
	ActiveSessions    prometheus.Gauge
	SessionDuration   prometheus.Histogram

	// Ingestion metrics
	ChunksIngested prometheus.Counter
	AudioBytes     prometheus.Counter

	// Flush metrics
	FlushesTriggered *prometheus.CounterVec // by trigger reason
	FlushesSkipped   *prometheus.CounterVec // by skip reason
	FlushesRestored  prometheus.Counter
	FlushDuration    prometheus.Histogram

	// Transcription outcome metrics
	TranscriptionFailures   prometheus.Counter
	HallucinationsDiscarded prometheus.Counter

	// Persistence metrics
	PersistFailures prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_started_total",
			Help: "Total number of dictation sessions started",
		}),
		SessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_completed_total",
			Help: "Total number of sessions finalized successfully",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_failed_total",
			Help: "Total number of sessions that ended in failure",
		}),
		SessionsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_cancelled_total",
			Help: "Total number of sessions cancelled by the user",
		}),
		SessionsRecovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_recovered_total",
			Help: "Total number of sessions rebuilt after losing in-memory state",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dictation_active_sessions",
			Help: "Current number of in-memory streaming sessions",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_session_duration_seconds",
			Help:    "Wall-clock duration of completed sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		ChunksIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_chunks_ingested_total",
			Help: "Total number of audio chunks accepted",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_audio_bytes_total",
			Help: "Total decoded PCM bytes accepted",
		}),

		FlushesTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictation_flushes_triggered_total",
			Help: "Total flushes by trigger reason",
		}, []string{"reason"}),
		FlushesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictation_flushes_skipped_total",
			Help: "Total flushes skipped by reason",
		}, []string{"reason"}),
		FlushesRestored: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_flushes_restored_total",
			Help: "Total flushes whose audio was restored after a backend failure",
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_flush_duration_seconds",
			Help:    "Time spent per transcription flush",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),

		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_transcription_failures_total",
			Help: "Total transcription calls that failed after retries",
		}),
		HallucinationsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_hallucinations_discarded_total",
			Help: "Total transcription results discarded as repetition loops",
		}),

		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictation_persist_failures_total",
			Help: "Total background durable writes that failed",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictation_http_requests_total",
			Help: "Total HTTP requests by method, endpoint and status",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dictation_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictation_http_errors_total",
			Help: "Total HTTP error responses by type",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordHTTPError records one HTTP error response.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
