// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "emergency_escalation"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Listener metrics
	TranscriptsFinal   prometheus.Counter
	ListenerRestarts   prometheus.Counter
	ListenerErrors     *prometheus.CounterVec
	ListenerSuppressed *prometheus.CounterVec

	// Detection metrics
	DetectionsTotal *prometheus.CounterVec

	// Countdown metrics
	CountdownsStarted   *prometheus.CounterVec
	CountdownsCancelled *prometheus.CounterVec
	CountdownsExpired   *prometheus.CounterVec

	// Session metrics
	SessionsCreated   *prometheus.CounterVec
	SessionsDuplicate prometheus.Counter

	// Escalation metrics
	EscalationsTotal     *prometheus.CounterVec
	EscalationDuplicates prometheus.Counter
	NotifyLatency        prometheus.Histogram
	Acknowledgments      prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of finalized transcripts classified",
		}),
		ListenerRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_restarts_total",
			Help:      "Total number of automatic listener restarts",
		}),
		ListenerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_errors_total",
			Help:      "Total number of recognizer errors surfaced as warnings",
		}, []string{"code"}),
		ListenerSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_suppressed_errors_total",
			Help:      "Total number of recognizer errors suppressed by the taxonomy",
		}, []string{"code"}),

		DetectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of emergency detections",
		}, []string{"confidence"}),

		CountdownsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "countdowns_started_total",
			Help:      "Total number of auto-escalation countdowns started",
		}, []string{"flow"}),
		CountdownsCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "countdowns_cancelled_total",
			Help:      "Total number of countdowns cancelled by user action",
		}, []string{"flow"}),
		CountdownsExpired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "countdowns_expired_total",
			Help:      "Total number of countdowns that reached zero",
		}, []string{"flow"}),

		SessionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of escalation sessions created",
		}, []string{"trigger"}),
		SessionsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_duplicate_total",
			Help:      "Total number of detections ignored because a session was active",
		}),

		EscalationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of escalation attempts by outcome",
		}, []string{"outcome", "silent"}),
		EscalationDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_duplicates_total",
			Help:      "Total number of escalate calls rejected as duplicates",
		}),
		NotifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notify_latency_seconds",
			Help:      "Notification endpoint round-trip latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		Acknowledgments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acknowledgments_total",
			Help:      "Total number of responder acknowledgments received",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordFinalTranscript records a finalized transcript being classified.
func (m *Metrics) RecordFinalTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordDetection records an emergency detection.
func (m *Metrics) RecordDetection(confidence string) {
	m.DetectionsTotal.WithLabelValues(confidence).Inc()
}

// RecordListenerRestart records an automatic restart.
func (m *Metrics) RecordListenerRestart() {
	m.ListenerRestarts.Inc()
}

// RecordListenerError records a recognizer error by code.
func (m *Metrics) RecordListenerError(code string, suppressed bool) {
	if suppressed {
		m.ListenerSuppressed.WithLabelValues(code).Inc()
		return
	}
	m.ListenerErrors.WithLabelValues(code).Inc()
}

// RecordCountdownStarted records a countdown being armed.
func (m *Metrics) RecordCountdownStarted(flow string) {
	m.CountdownsStarted.WithLabelValues(flow).Inc()
}

// RecordCountdownCancelled records a user action cancelling a countdown.
func (m *Metrics) RecordCountdownCancelled(flow string) {
	m.CountdownsCancelled.WithLabelValues(flow).Inc()
}

// RecordCountdownExpired records a countdown reaching zero.
func (m *Metrics) RecordCountdownExpired(flow string) {
	m.CountdownsExpired.WithLabelValues(flow).Inc()
}

// RecordSessionCreated records a new escalation session.
func (m *Metrics) RecordSessionCreated(trigger string) {
	m.SessionsCreated.WithLabelValues(trigger).Inc()
}

// RecordSessionDuplicate records a detection ignored due to an active
// session.
func (m *Metrics) RecordSessionDuplicate() {
	m.SessionsDuplicate.Inc()
}

// RecordEscalation records an escalation attempt outcome.
func (m *Metrics) RecordEscalation(outcome string, silent bool, latencySeconds float64) {
	label := "false"
	if silent {
		label = "true"
	}
	m.EscalationsTotal.WithLabelValues(outcome, label).Inc()
	if latencySeconds > 0 {
		m.NotifyLatency.Observe(latencySeconds)
	}
}

// RecordEscalationDuplicate records an idempotency rejection.
func (m *Metrics) RecordEscalationDuplicate() {
	m.EscalationDuplicates.Inc()
}

// RecordAcknowledgment records a responder acknowledgment.
func (m *Metrics) RecordAcknowledgment() {
	m.Acknowledgments.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
