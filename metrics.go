package ddns

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	cycles              *prometheus.CounterVec
	metadataFailures    *prometheus.CounterVec
	updateAttempts      *prometheus.CounterVec
	consecutiveFailures prometheus.Gauge
	lastSuccess         prometheus.Gauge
}

// newMetrics registers the reconciler's collectors with reg.
// A nil reg leaves them unregistered; they still count but are never exported.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by outcome.",
		}, []string{"result"}),
		metadataFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "metadata_failures_total",
			Help:      "Failed metadata lookups by stage.",
		}, []string{"stage"}),
		updateAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "update_attempts_total",
			Help:      "DNS update requests by result.",
		}, []string{"result"}),
		consecutiveFailures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ddns",
			Name:      "consecutive_failures",
			Help:      "Current metadata failure streak used for backoff.",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ddns",
			Name:      "last_update_success_timestamp_seconds",
			Help:      "Unix time of the last accepted DNS update.",
		}),
	}
}

func (m *metrics) cycle(result string) { m.cycles.WithLabelValues(result).Inc() }

func (m *metrics) metadataFailure(stage string, failures int) {
	m.metadataFailures.WithLabelValues(stage).Inc()
	m.consecutiveFailures.Set(float64(failures))
}

func (m *metrics) updateAttempt(result UpdateResult) {
	m.updateAttempts.WithLabelValues(result.String()).Inc()
	if result == Success {
		m.lastSuccess.Set(float64(time.Now().Unix()))
	}
}
