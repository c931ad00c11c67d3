package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the matching pipeline.
type PipelineMetrics struct {
	messagesTotal *prometheus.CounterVec
	handleLatency *prometheus.HistogramVec
	reservations  *prometheus.CounterVec
	httpEnqueued  *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "messages_total",
			Help:      "Queue messages processed by consumer and outcome",
		}, []string{"consumer", "outcome"}),
		handleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "handle_latency_seconds",
			Help:      "Latency of handling one queue message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"consumer"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "reservations_total",
			Help:      "Reservation lifecycle transitions",
		}, []string{"action"}),
		httpEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "api",
			Name:      "enqueued_total",
			Help:      "Requests accepted by the HTTP API and queued",
		}, []string{"topic"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.handleLatency, m.reservations, m.httpEnqueued)
	return m
}

// ObserveMessage counts one processed message.
func (m *PipelineMetrics) ObserveMessage(consumer, outcome string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(consumer, outcome).Inc()
}

func (m *PipelineMetrics) ObserveLatency(consumer string, seconds float64) {
	if m == nil {
		return
	}
	m.handleLatency.WithLabelValues(consumer).Observe(seconds)
}

// ObserveReservation counts held, confirmed, cancelled, missing and restored reservations.
func (m *PipelineMetrics) ObserveReservation(action string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(action).Inc()
}

func (m *PipelineMetrics) ObserveEnqueued(topic string) {
	if m == nil {
		return
	}
	m.httpEnqueued.WithLabelValues(topic).Inc()
}
