package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks sink health and outbox relay throughput.
type Metrics struct {
	BreakerState    *prometheus.GaugeVec
	BreakerRejected *prometheus.CounterVec
	SinkFailures    *prometheus.CounterVec
	RelayPublished  prometheus.Counter
	RelayFailures   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circulation_analytics_breaker_state",
			Help: "Circuit breaker state per sink (0=closed, 1=half-open, 2=open)",
		}, []string{"sink"}),
		BreakerRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_analytics_breaker_rejected_total",
			Help: "Events dropped because the sink's circuit breaker was open",
		}, []string{"sink"}),
		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_analytics_sink_failures_total",
			Help: "Events a sink failed to accept",
		}, []string{"sink"}),
		RelayPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "circulation_analytics_outbox_published_total",
			Help: "Outbox entries published to Kafka",
		}),
		RelayFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "circulation_analytics_outbox_publish_failures_total",
			Help: "Outbox relay batches that failed to publish",
		}),
	}
}

func (m *Metrics) setBreakerState(sink string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(sink).Set(state)
}

func (m *Metrics) incRejected(sink string) {
	if m == nil {
		return
	}
	m.BreakerRejected.WithLabelValues(sink).Inc()
}

func (m *Metrics) incSinkFailure(sink string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) addPublished(n int) {
	if m == nil {
		return
	}
	m.RelayPublished.Add(float64(n))
}

func (m *Metrics) incRelayFailure() {
	if m == nil {
		return
	}
	m.RelayFailures.Inc()
}
