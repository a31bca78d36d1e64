package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hellofresh/goengine-core"
)

const namespace = "goengine"

// Ensure Metrics implements goengine.Metrics
var _ goengine.Metrics = &Metrics{}

// Metrics is an object for exposing prometheus metrics
type Metrics struct {
	mailboxesActive    *prometheus.GaugeVec
	messagesQueued     *prometheus.CounterVec
	retries            *prometheus.CounterVec
	processingDuration *prometheus.HistogramVec
}

// NewMetrics instantiate and return an object of Metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// mailboxesActive is used to expose 'mailboxes_active' metric
		mailboxesActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mailboxes_active",
				Help:      "gauge of the number of live mailboxes",
			},
			[]string{"kind"},
		),
		// messagesQueued is used to expose 'messages_queued_total' metric
		messagesQueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_queued_total",
				Help:      "counter for number of messages enqueued in a mailbox",
			},
			[]string{"kind"},
		),
		// retries is used to expose 'retries_total' metric
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "counter for number of retried dispatch and checkpoint operations",
			},
			[]string{"operation"},
		),
		// processingDuration is used to expose 'message_processing_duration_seconds' metrics
		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "message_processing_duration_seconds",
				Help:      "histogram of message handling latencies",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5}, //buckets for histogram
			},
			[]string{"kind", "success"},
		),
	}
}

// RegisterMetrics registers the metrics on the registry
func (m *Metrics) RegisterMetrics(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		m.mailboxesActive,
		m.messagesQueued,
		m.retries,
		m.processingDuration,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// MailboxCreated increments the live mailboxes of the kind
func (m *Metrics) MailboxCreated(kind goengine.MailboxKind) {
	m.mailboxesActive.With(kindLabels(kind)).Inc()
}

// MailboxRemoved decrements the live mailboxes of the kind
func (m *Metrics) MailboxRemoved(kind goengine.MailboxKind) {
	m.mailboxesActive.With(kindLabels(kind)).Dec()
}

// MessageQueued counts the enqueued messages
func (m *Metrics) MessageQueued(kind goengine.MailboxKind) {
	m.messagesQueued.With(kindLabels(kind)).Inc()
}

// MessageProcessed observes the time it took to handle a message
func (m *Metrics) MessageProcessed(kind goengine.MailboxKind, duration time.Duration, success bool) {
	labels := prometheus.Labels{"kind": string(kind), "success": strconv.FormatBool(success)}
	m.processingDuration.With(labels).Observe(duration.Seconds())
}

// RetryAttempted counts the retries of the operation
func (m *Metrics) RetryAttempted(operation string) {
	m.retries.With(prometheus.Labels{"operation": operation}).Inc()
}

func kindLabels(kind goengine.MailboxKind) prometheus.Labels {
	return prometheus.Labels{"kind": string(kind)}
}
