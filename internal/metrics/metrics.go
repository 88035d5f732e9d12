// Package metrics provides Prometheus metrics for ppenc.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ppenc"

// Metrics contains all Prometheus metrics for a ppenc endpoint.
type Metrics struct {
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	BodyKeyRatchets  prometheus.Counter

	// FrameErrors counts rejected frames by error taxonomy: bad_version,
	// bad_seq_num, bad_body_checksum, bad_body_key_num, bad_response_mac,
	// body_too_large, io_error.
	FrameErrors *prometheus.CounterVec

	ResponseMACLatency prometheus.Histogram
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages encrypted and sent",
		}),
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages decrypted and accepted",
		}),
		BodyKeyRatchets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_key_ratchets_total",
			Help:      "Total number of body-key ladder advances",
		}),
		FrameErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Total rejected frames by error taxonomy",
		}, []string{"error_type"}),
		ResponseMACLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_mac_latency_seconds",
			Help:      "Histogram of time from sending a message to receiving its response MAC",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
}

// RecordMessageSent records one message having been encrypted and sent.
func (m *Metrics) RecordMessageSent() {
	m.MessagesSent.Inc()
}

// RecordMessageReceived records one message having been decrypted and accepted.
func (m *Metrics) RecordMessageReceived() {
	m.MessagesReceived.Inc()
}

// RecordBodyKeyRatchet records one advance of the body-key ladder.
func (m *Metrics) RecordBodyKeyRatchet() {
	m.BodyKeyRatchets.Inc()
}

// RecordFrameError records a rejected frame under the given error taxonomy
// bucket (e.g. "bad_version", "bad_seq_num", "bad_body_checksum",
// "bad_body_key_num", "bad_response_mac").
func (m *Metrics) RecordFrameError(errorType string) {
	m.FrameErrors.WithLabelValues(errorType).Inc()
}

// RecordResponseMACLatency records the round-trip time between sending a
// message and receiving its response MAC.
func (m *Metrics) RecordResponseMACLatency(latencySeconds float64) {
	m.ResponseMACLatency.Observe(latencySeconds)
}
