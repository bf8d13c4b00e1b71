package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for sessions and pacers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionsStarted   *prometheus.CounterVec
	SessionsClosed    *prometheus.CounterVec
	StaleCallbacks    *prometheus.CounterVec
	MalformedFragment prometheus.Counter
	ConsumerErrors    *prometheus.CounterVec
	ChunksDelivered   *prometheus.CounterVec
	ElementsDelivered *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// If reg is nil the collectors are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xiaoxia_sessions_started_total",
			Help: "Total number of sessions started",
		}, []string{"channel"}),
		SessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xiaoxia_sessions_closed_total",
			Help: "Total number of sessions closed, by reason",
		}, []string{"channel", "reason"}),
		StaleCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xiaoxia_stale_callbacks_total",
			Help: "Total number of callbacks ignored because their session was no longer live",
		}, []string{"channel"}),
		MalformedFragment: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xiaoxia_malformed_fragments_total",
			Help: "Total number of wire fragments dropped as malformed",
		}),
		ConsumerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xiaoxia_consumer_errors_total",
			Help: "Total number of consumer callbacks that failed or panicked",
		}, []string{"channel"}),
		ChunksDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xiaoxia_chunks_delivered_total",
			Help: "Total number of chunks handed to consumers",
		}, []string{"channel"}),
		ElementsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xiaoxia_elements_delivered_total",
			Help: "Total number of characters or bytes handed to consumers, by lane",
		}, []string{"channel", "lane"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SessionsStarted,
			m.SessionsClosed,
			m.StaleCallbacks,
			m.MalformedFragment,
			m.ConsumerErrors,
			m.ChunksDelivered,
			m.ElementsDelivered,
		)
	}
	return m
}

func (m *Metrics) sessionStarted(ch Channel) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) sessionClosed(ch Channel, reason CloseReason) {
	if m == nil {
		return
	}
	m.SessionsClosed.WithLabelValues(string(ch), reason.String()).Inc()
}

func (m *Metrics) stale(ch Channel) {
	if m == nil {
		return
	}
	m.StaleCallbacks.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) malformed() {
	if m == nil {
		return
	}
	m.MalformedFragment.Inc()
}

func (m *Metrics) consumerError(ch Channel) {
	if m == nil {
		return
	}
	m.ConsumerErrors.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) delivered(ch Channel, text, reasoning int) {
	if m == nil {
		return
	}
	m.ChunksDelivered.WithLabelValues(string(ch)).Inc()
	if text > 0 {
		m.ElementsDelivered.WithLabelValues(string(ch), LaneText.String()).Add(float64(text))
	}
	if reasoning > 0 {
		m.ElementsDelivered.WithLabelValues(string(ch), LaneReasoning.String()).Add(float64(reasoning))
	}
}
